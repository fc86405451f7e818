package output

import (
	"context"

	"script-agent/internal/domain/entity"
)

// ContextStore persists script parameters so a session can be resumed.
type ContextStore interface {
	Load(ctx context.Context, sessionID string) (inputs, outputs map[string]string, err error)
	Put(ctx context.Context, sessionID string, scope entity.ParameterScope, name, value string) error
	Close() error
}
