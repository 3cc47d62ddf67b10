package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/boostgw/boostgw/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := storage.NewRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

// Both store implementations must satisfy the same cooldown contract.
func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestCooldown_FirstActionIsClear(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cd := NewCooldown(store, 30*time.Second, "test:")

			remaining, err := cd.Remaining(context.Background(), "1.2.3.4")
			require.NoError(t, err)
			assert.Zero(t, remaining)
		})
	}
}

func TestCooldown_SecondActionWithinWindowMustWait(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cd := NewCooldown(store, 30*time.Second, "test:")
			ctx := context.Background()

			require.NoError(t, cd.Mark(ctx, "1.2.3.4"))

			remaining, err := cd.Remaining(ctx, "1.2.3.4")
			require.NoError(t, err)
			assert.Greater(t, remaining, time.Duration(0))
			assert.Less(t, remaining, 30*time.Second)
		})
	}
}

func TestCooldown_ClearsAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	cd := NewCooldown(store, 30*time.Second, "test:")
	ctx := context.Background()

	require.NoError(t, cd.Mark(ctx, "1.2.3.4"))

	// Rewind the clock past the window.
	cd.now = func() time.Time { return time.Now().Add(31 * time.Second) }

	remaining, err := cd.Remaining(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestCooldown_KeysAreIndependent(t *testing.T) {
	cd := NewCooldown(NewMemoryStore(), 30*time.Second, "test:")
	ctx := context.Background()

	require.NoError(t, cd.Mark(ctx, "1.2.3.4"))

	remaining, err := cd.Remaining(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestCooldown_PrefixesIsolateRegimes(t *testing.T) {
	store := NewMemoryStore()
	purchase := NewCooldown(store, 30*time.Second, "purchase:")
	free := NewCooldown(store, 12*time.Hour, "free:")
	ctx := context.Background()

	require.NoError(t, purchase.Mark(ctx, "1.2.3.4"))

	remaining, err := free.Remaining(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, remaining, "purchase cooldown must not bleed into the free regime")
}

func TestRedisStore_ExpiryHonored(t *testing.T) {
	redisStore, mr := newRedisStore(t)
	cd := NewCooldown(redisStore, 30*time.Second, "test:")
	ctx := context.Background()

	require.NoError(t, cd.Mark(ctx, "1.2.3.4"))

	mr.FastForward(31 * time.Second)

	remaining, err := cd.Remaining(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestMemoryStore_CleanupDropsExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "a", time.Now().Add(-time.Minute), 30*time.Second))
	require.NoError(t, store.Mark(ctx, "b", time.Now(), 30*time.Second))

	store.Cleanup()

	_, ok, err := store.Last(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Last(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}
