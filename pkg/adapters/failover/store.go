// Package failover decorates a SessionStore with a sticky in-memory standby.
// When the primary store errors, the wrapper degrades to the standby for the
// rest of the process lifetime instead of flapping between backends.
package failover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/tessellate-io/weft/pkg/adapters/memory"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
)

// Store wraps a primary SessionStore with an in-memory standby.
//
// Failover is one-way: once degraded, the store never probes the primary
// again. Sessions written before the failover are lost to this process,
// which is the documented trade-off for keeping in-flight sessions usable.
type Store struct {
	primary  ports.SessionStore
	standby  *memory.Store
	degraded atomic.Bool
	logger   *slog.Logger
}

// New wraps primary with a fresh in-memory standby.
func New(primary ports.SessionStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		primary: primary,
		standby: memory.NewStore(),
		logger:  logger,
	}
}

// Degraded reports whether the store has switched to the standby.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) active() ports.SessionStore {
	if s.degraded.Load() {
		return s.standby
	}
	return s.primary
}

// trip switches to the standby. ErrSessionNotFound is a normal outcome and
// never counts as a backend failure.
func (s *Store) trip(op string, err error) {
	if err == nil || errors.Is(err, domain.ErrSessionNotFound) {
		return
	}
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("primary session store failed, degrading to in-memory standby",
			"op", op, "err", err)
	}
}

func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	if err := s.active().Create(ctx, session); err != nil {
		s.trip("create", err)
		return s.standby.Create(ctx, session)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.active().Load(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.trip("load", err)
		return s.standby.Load(ctx, id)
	}
	return session, err
}

func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	if err := s.active().Save(ctx, session); err != nil {
		s.trip("save", err)
		return s.standby.Save(ctx, session)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.active().Delete(ctx, id); err != nil {
		s.trip("delete", err)
		return s.standby.Delete(ctx, id)
	}
	return nil
}
