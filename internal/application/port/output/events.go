package output

import (
	"context"

	"script-agent/internal/domain/entity"
)

type EventSink interface {
	Publish(ctx context.Context, event entity.Event)
}

type EventBus interface {
	EventSink
	// Subscribe registers an observer. The returned func unregisters it.
	Subscribe(filter func(entity.Event) bool) (<-chan entity.Event, func())
}
