package output

import (
	"context"

	"script-agent/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Description() string
	// Constraint is an optional usage rule merged into the coordinator instruction.
	Constraint() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string, env *ToolEnv) (string, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}

// Notifier carries progress text and control transfer out of a running tool.
type Notifier interface {
	Notify(text string)
	Debug(text string)
	Goto(label string)
}

// PerceptBroadcaster captures the surface and publishes the screenshot.
type PerceptBroadcaster interface {
	Broadcast(ctx context.Context) (*entity.Screenshot, error)
}

// ToolEnv is the session-scoped capability set handed to every tool call.
// None of it is part of a tool's parameter schema.
type ToolEnv struct {
	Script   *entity.ScriptContext
	Notifier Notifier
	Percepts PerceptBroadcaster
	Messages []entity.Message
}

// Task returns the last user command of the substituted history.
func (e *ToolEnv) Task() string {
	return entity.LastUserContent(e.Messages)
}
