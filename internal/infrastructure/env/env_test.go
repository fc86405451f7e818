package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvService_OverloadsAppEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SA_TEST_KEY=base\nSA_TEST_ONLY_BASE=1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("SA_TEST_KEY=override\n"), 0o600))

	t.Setenv("APP_ENV", "test")
	t.Setenv("SA_TEST_KEY", "")
	t.Setenv("SA_TEST_ONLY_BASE", "")
	os.Unsetenv("SA_TEST_KEY")
	os.Unsetenv("SA_TEST_ONLY_BASE")

	svc := NewEnvService(dir)

	assert.Equal(t, "test", svc.AppEnv)
	assert.Len(t, svc.Loaded, 2)
	assert.Equal(t, "override", svc.Get("SA_TEST_KEY"))
	assert.True(t, svc.GetBool("SA_TEST_ONLY_BASE", false))
}

func TestEnvService_Defaults(t *testing.T) {
	svc := &EnvService{}
	t.Setenv("SA_TEST_INT", "not-a-number")

	assert.Equal(t, 7, svc.GetInt("SA_TEST_INT", 7))
	assert.Equal(t, "fallback", svc.GetWithDefault("SA_TEST_MISSING", "fallback"))

	_, err := svc.Require("SA_TEST_MISSING")
	assert.Error(t, err)
}
