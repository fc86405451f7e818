package input

import (
	"context"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

type DispatchRequest struct {
	SessionID string
	Script    *entity.ScriptContext
	History   []entity.Message
	Events    output.EventSink
}

type DispatchResult struct {
	Tool           entity.ToolName
	Output         string
	Err            error
	SelectDuration time.Duration
	ExecDuration   time.Duration
}

// Failed reports whether the command ended in a recoverable failure.
func (r *DispatchResult) Failed() bool {
	return r.Err != nil
}

// CommandDispatcher runs exactly one tool per inbound command.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) *DispatchResult
}
