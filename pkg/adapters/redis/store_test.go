package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-io/weft/pkg/adapters/redis"
	"github.com/tessellate-io/weft/pkg/domain"
	"github.com/tessellate-io/weft/pkg/ports"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTLRefreshedOnWrite(t *testing.T) {
	store, mr := newTestStore(t, redis.WithTTL(30*time.Second))
	ctx := context.Background()

	session := domain.NewSession("ttl")
	require.NoError(t, store.Create(ctx, session))

	key := "weft:session:" + session.ID
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(20 * time.Second)
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, 30*time.Second, mr.TTL(key), "every write refreshes expiry")

	mr.FastForward(31 * time.Second)
	_, err := store.Load(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	store, mr := newTestStore(t, redis.WithPrefix("acme:"))
	ctx := context.Background()

	session := domain.NewSession("prefixed")
	require.NoError(t, store.Create(ctx, session))
	assert.True(t, mr.Exists("acme:"+session.ID))
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
