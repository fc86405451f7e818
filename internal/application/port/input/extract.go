package input

import (
	"context"

	"script-agent/internal/domain/entity"
)

// ScriptExtractor turns a recorded conversation into a replayable script.
type ScriptExtractor interface {
	Extract(ctx context.Context, history []entity.Message) (*entity.Script, error)
}
