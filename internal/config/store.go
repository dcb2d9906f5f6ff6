package config

import (
	"context"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/tessellate-io/weft/pkg/adapters/failover"
	"github.com/tessellate-io/weft/pkg/adapters/memory"
	"github.com/tessellate-io/weft/pkg/adapters/redis"
	"github.com/tessellate-io/weft/pkg/persistence/middleware"
	"github.com/tessellate-io/weft/pkg/ports"
)

// pingTimeout bounds the startup reachability probe.
const pingTimeout = 2 * time.Second

// SelectStore picks the session store backend. With no Redis URL configured
// the in-memory store is used directly. A configured Redis is probed once at
// startup: unreachable means in-memory for the process lifetime, reachable
// means Redis wrapped in a sticky in-memory failover for later outages.
// Configured PII patterns and an encryption key wrap the selected backend
// with persistence middleware; masking runs before encryption so the sealed
// record never contains the raw values. The returned func releases backend
// resources on shutdown.
func SelectStore(ctx context.Context, cfg Config, logger *slog.Logger) (ports.SessionStore, func(), error) {
	store, cleanup, err := selectBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var wraps []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		logger.Info("session store: PII masking enabled", "patterns", len(cfg.PIIPatterns))
		wraps = append(wraps, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	if len(cfg.EncryptionKey) > 0 {
		logger.Info("session store: at-rest encryption enabled")
		wraps = append(wraps, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: cfg.EncryptionKey,
		}))
	}
	if len(wraps) > 0 {
		store = middleware.Chain(store, wraps...)
	}
	return store, cleanup, nil
}

func selectBackend(ctx context.Context, cfg Config, logger *slog.Logger) (ports.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("session store: in-memory (no REDIS_URL configured)")
		return memory.NewStore(), func() {}, nil
	}

	opts, err := backend.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	primary := redis.NewFromClient(backend.NewClient(opts), redis.WithTTL(cfg.SessionTTL))

	probeCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := primary.Ping(probeCtx); err != nil {
		logger.Warn("session store: redis unreachable, using in-memory", "addr", opts.Addr, "err", err)
		_ = primary.Close()
		return memory.NewStore(), func() {}, nil
	}

	logger.Info("session store: redis", "addr", opts.Addr, "ttl", cfg.SessionTTL)
	return failover.New(primary, logger), func() { _ = primary.Close() }, nil
}
