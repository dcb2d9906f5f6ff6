package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-io/weft/internal/logging"
	"github.com/tessellate-io/weft/pkg/adapters/failover"
	"github.com/tessellate-io/weft/pkg/adapters/memory"
	"github.com/tessellate-io/weft/pkg/domain"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkflowPath, cfg.WorkflowPath)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"WORKFLOW_PATH":       "apps/csv.yaml",
		"WEFT_ADDR":           ":9999",
		"REDIS_URL":           "redis://localhost:6379/2",
		"SESSION_TTL_SECONDS": "120",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "apps/csv.yaml", cfg.WorkflowPath)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestFromEnvRejectsBadTTL(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{"SESSION_TTL_SECONDS": "soon"}))
	assert.Error(t, err)

	_, err = fromLookup(lookupFrom(map[string]string{"SESSION_TTL_SECONDS": "-5"}))
	assert.Error(t, err)
}

func TestFromEnvEncryptionKey(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"SESSION_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString(key),
	}))
	require.NoError(t, err)
	assert.Equal(t, key, cfg.EncryptionKey)

	_, err = fromLookup(lookupFrom(map[string]string{"SESSION_ENCRYPTION_KEY": "dG9vc2hvcnQ="}))
	assert.Error(t, err)
}

func TestFromEnvPIIPatterns(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"SESSION_PII_PATTERNS": "(?i)email, ssn ,",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"(?i)email", "ssn"}, cfg.PIIPatterns)

	_, err = fromLookup(lookupFrom(map[string]string{"SESSION_PII_PATTERNS": "(unclosed"}))
	assert.Error(t, err)
}

func TestSelectStoreMasksPII(t *testing.T) {
	ctx := context.Background()
	cfg := Config{PIIPatterns: []string{"(?i)email"}}

	store, cleanup, err := SelectStore(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	session := domain.NewSession("demo")
	session.Context.Public["email"] = "ada@example.com"
	session.Context.Public["note"] = "keep"
	require.NoError(t, store.Create(ctx, session))

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Context.Public["email"])
	assert.Equal(t, "keep", loaded.Context.Public["note"])
}

func TestSelectStoreWithEncryption(t *testing.T) {
	ctx := context.Background()
	cfg := Config{EncryptionKey: bytes.Repeat([]byte{7}, 32)}

	store, cleanup, err := SelectStore(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	session := domain.NewSession("demo")
	session.Context.Public["email"] = "ada@example.com"
	require.NoError(t, store.Create(ctx, session))

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.Context.Public["email"])
}

func TestSelectStoreWithoutRedis(t *testing.T) {
	store, cleanup, err := SelectStore(context.Background(), Config{}, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.Store{}, store)
}

func TestSelectStoreWithReachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Config{RedisURL: "redis://" + mr.Addr(), SessionTTL: time.Minute}

	store, cleanup, err := SelectStore(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.IsType(t, &failover.Store{}, store)

	session := domain.NewSession("demo")
	require.NoError(t, store.Create(context.Background(), session))
	assert.True(t, mr.Exists("weft:session:"+session.ID))
}

func TestSelectStoreFallsBackWhenRedisUnreachable(t *testing.T) {
	// A closed miniredis leaves a port nothing is listening on.
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := Config{RedisURL: "redis://" + addr}
	store, cleanup, err := SelectStore(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.Store{}, store)

	session := domain.NewSession("demo")
	require.NoError(t, store.Create(context.Background(), session))
	loaded, err := store.Load(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
}
