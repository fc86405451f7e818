package events

import (
	"context"
	"sync"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/google/uuid"
)

var _ output.EventBus = (*Bus)(nil)

type subscriber struct {
	ch       chan entity.Event
	filter   func(entity.Event) bool
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Bus fans session events out to registered observers.
// Screenshots are dropped for observers whose buffer is full; every other
// event waits until it is delivered, the observer leaves, or ctx ends.
type Bus struct {
	logger     output.LoggerPort
	bufferSize int

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewBus(logger output.LoggerPort, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:     logger,
		bufferSize: bufferSize,
		subs:       make(map[*subscriber]struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, event entity.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	// The read lock is held for the whole delivery so Shutdown cannot close
	// a channel under a pending send. Observers leaving close done first.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for s := range b.subs {
		if s.filter != nil && !s.filter(event) {
			continue
		}

		if event.Droppable() {
			select {
			case s.ch <- event:
			case <-s.done:
			default:
				b.logger.Debug("Dropped event for slow observer", "type", event.Type, "session", event.SessionID)
			}
			continue
		}

		select {
		case s.ch <- event:
		case <-s.done:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) Subscribe(filter func(entity.Event) bool) (<-chan entity.Event, func()) {
	s := &subscriber{
		ch:     make(chan entity.Event, b.bufferSize),
		filter: filter,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}

	// Leaving closes the channel once no Publish can reach it; events
	// already buffered stay readable.
	unsubscribe := func() {
		s.stop()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
	}
	return s.ch, unsubscribe
}

// Shutdown stops delivery and closes every observer channel.
func (b *Bus) Shutdown() {
	b.mu.RLock()
	for s := range b.subs {
		s.stop()
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// ForSession matches events of one session plus screenshots, which every
// connected observer receives.
func ForSession(sessionID string) func(entity.Event) bool {
	return func(e entity.Event) bool {
		return e.SessionID == sessionID || e.Type == entity.EventBrowserScreenshot
	}
}
