// Package ports defines the interfaces between the engine and its
// infrastructure adapters.
package ports

import (
	"context"

	"github.com/tessellate-io/weft/pkg/domain"
)

// SessionStore persists per-session state across requests. Two adapters
// implement it: an in-process map and a Redis-backed store with expiry.
// Every access is a whole-session read or write keyed by session id.
type SessionStore interface {
	// Create persists a brand new session.
	Create(ctx context.Context, session *domain.Session) error

	// Load retrieves a session by id.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Save persists the session, refreshing any backend expiry.
	Save(ctx context.Context, session *domain.Session) error

	// Delete removes the session.
	Delete(ctx context.Context, id string) error
}
