package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pixl-ae/leadflow/pkg/adapters/redis"
	"github.com/pixl-ae/leadflow/pkg/domain"
	"github.com/pixl-ae/leadflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTLAndPrune(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession("s1", time.Now())))
	assert.True(t, mr.Exists("test:s1"))
	assert.Equal(t, time.Minute, mr.TTL("test:s1"))

	// The index is scored by wall clock, so push the score into the past.
	_, err := mr.ZAdd("test:index", float64(time.Now().Add(-time.Hour).Unix()), "s1")
	require.NoError(t, err)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "s1")
}

func TestRedisStore_LoadMissing(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
