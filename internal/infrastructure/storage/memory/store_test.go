package memory

import (
	"context"
	"testing"

	"script-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutAndLoadBySession(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Put(ctx, "a", entity.ScopeInput, "city", "Berlin"))
	require.NoError(t, s.Put(ctx, "a", entity.ScopeOutput, "price", "42"))
	require.NoError(t, s.Put(ctx, "a", entity.ScopeInput, "city", "Paris"))
	require.NoError(t, s.Put(ctx, "b", entity.ScopeInput, "city", "Rome"))

	in, out, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"city": "Paris"}, in)
	assert.Equal(t, map[string]string{"price": "42"}, out)

	in, out, err = s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, in)
	assert.Empty(t, out)
}

func TestStore_LoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Put(ctx, "a", entity.ScopeInput, "k", "v"))

	in, _, _ := s.Load(ctx, "a")
	in["k"] = "changed"

	again, _, _ := s.Load(ctx, "a")
	assert.Equal(t, "v", again["k"])
}
