package input

import (
	"context"

	"script-agent/internal/domain/entity"
)

// SessionHandler receives the operator's inbound requests for one session.
type SessionHandler interface {
	ID() string
	HandleMessages(ctx context.Context, history []entity.Message) error
	SubmitScript(ctx context.Context, text string) error
	NextStep(ctx context.Context) error
	SwitchMode(ctx context.Context, mode entity.StepMode) error
	Abort(ctx context.Context)
	EditStep(ctx context.Context, text string) error
	Script() *entity.ScriptContext
	State() entity.ScriptState
	Close()
}

// SessionProvider hands out shared sessions to connected clients.
type SessionProvider interface {
	// Attach joins the session id, creating it when needed. An empty id starts a new one.
	Attach(ctx context.Context, id string) SessionHandler
	Release(id string)
	Context(ctx context.Context, id string) (*entity.ScriptContext, error)
	// Transcript returns the conversation of a live session.
	Transcript(id string) ([]entity.Message, error)
	Count() int
}
