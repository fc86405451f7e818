package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"script-agent/internal/application/port/input"
	"script-agent/internal/domain/entity"
)

var _ input.SessionProvider = (*Manager)(nil)

type entry struct {
	session *Session
	refs    int
}

// Manager owns the live sessions. Clients reconnecting with a known ID share
// the same session until the last one releases it.
type Manager struct {
	deps Deps
	cfg  Config

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(deps Deps, cfg Config) *Manager {
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}
}

// Open attaches to the session id, creating it when needed. An empty id
// starts a fresh session.
func (m *Manager) Open(ctx context.Context, id string, opts ...Option) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		e.refs++
		return e.session
	}

	s := New(ctx, id, m.deps, m.cfg, opts...)
	m.sessions[id] = &entry{session: s, refs: 1}
	return s
}

func (m *Manager) Attach(ctx context.Context, id string) input.SessionHandler {
	return m.Open(ctx, id)
}

func (m *Manager) Release(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	e.session.Close()
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Context returns the Script Context of id, live or persisted.
func (m *Manager) Context(ctx context.Context, id string) (*entity.ScriptContext, error) {
	if s, ok := m.Get(id); ok {
		return s.Script(), nil
	}
	if m.deps.Store == nil {
		return nil, entity.ErrSessionUnknown
	}

	inputs, outputs, err := m.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(inputs)+len(outputs) == 0 {
		return nil, entity.ErrSessionUnknown
	}
	script := entity.NewScriptContext()
	script.Restore(inputs, outputs)
	return script, nil
}

func (m *Manager) Transcript(id string) ([]entity.Message, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, entity.ErrSessionUnknown
	}
	return s.History(), nil
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll stops every session regardless of references.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		sessions = append(sessions, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
