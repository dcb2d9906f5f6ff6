// Package memory provides the in-process SessionStore used when no external
// store is configured or reachable. Process lifetime only; no TTL
// enforcement beyond explicit deletion.
package memory

import (
	"context"
	"sync"

	"github.com/tessellate-io/weft/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.Session
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.Session)}
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	return s.Save(ctx, session)
}

// Save stores a deep copy so callers cannot mutate persisted state through
// a shared pointer.
func (s *Store) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.ID] = session.Clone()
	return nil
}

// Load retrieves an isolated copy of the session.
func (s *Store) Load(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Len reports how many sessions are held. Used by tests and diagnostics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
