package input

import (
	"context"

	"script-agent/internal/domain/entity"
)

type RunResult struct {
	Steps   int
	Failed  int
	Outputs map[string]string
	Context string
}

// ScriptRunner executes a whole script unattended, in auto mode.
type ScriptRunner interface {
	Run(ctx context.Context, script *entity.Script, inputs map[string]string) (*RunResult, error)
}
