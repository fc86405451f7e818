package dispatch

import (
	"context"
	"fmt"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

var (
	_ output.Notifier           = (*sessionNotifier)(nil)
	_ output.PerceptBroadcaster = (*surfaceBroadcaster)(nil)
)

// sessionNotifier turns tool progress into session events.
type sessionNotifier struct {
	ctx       context.Context
	sink      output.EventSink
	sessionID string
	function  string
}

func (n *sessionNotifier) Notify(text string) {
	n.publish(text, false)
}

func (n *sessionNotifier) Debug(text string) {
	n.publish(text, true)
}

func (n *sessionNotifier) Goto(label string) {
	n.sink.Publish(n.ctx, entity.Event{
		SessionID:    n.sessionID,
		Type:         entity.EventGoto,
		FunctionName: n.function,
		Label:        label,
	})
}

func (n *sessionNotifier) publish(text string, debug bool) {
	n.sink.Publish(n.ctx, entity.Event{
		SessionID:    n.sessionID,
		Type:         entity.EventServerResponse,
		FunctionName: n.function,
		Text:         text,
		Debug:        debug,
	})
}

// surfaceBroadcaster captures the surface and publishes the percept.
type surfaceBroadcaster struct {
	surface   output.ActionSurface
	sink      output.EventSink
	sessionID string
}

func (b *surfaceBroadcaster) Broadcast(ctx context.Context) (*entity.Screenshot, error) {
	shot, err := b.surface.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	b.sink.Publish(ctx, entity.Event{
		SessionID:  b.sessionID,
		Type:       entity.EventBrowserScreenshot,
		Screenshot: shot,
	})
	return shot, nil
}
