package memory

import (
	"context"
	"sync"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

var _ output.ContextStore = (*Store)(nil)

type key struct {
	session string
	scope   entity.ParameterScope
}

// Store keeps script parameters for the lifetime of the process.
type Store struct {
	mu   sync.RWMutex
	data map[key]map[string]string
}

func New() *Store {
	return &Store{data: make(map[key]map[string]string)}
}

func (s *Store) Load(_ context.Context, sessionID string) (map[string]string, map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(key{sessionID, entity.ScopeInput}), s.copyOf(key{sessionID, entity.ScopeOutput}), nil
}

func (s *Store) Put(_ context.Context, sessionID string, scope entity.ParameterScope, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{sessionID, scope}
	if s.data[k] == nil {
		s.data[k] = make(map[string]string)
	}
	s.data[k][name] = value
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) copyOf(k key) map[string]string {
	out := make(map[string]string, len(s.data[k]))
	for name, v := range s.data[k] {
		out[name] = v
	}
	return out
}
