package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestRedisKeyStore(t *testing.T) (*RedisKeyStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisKeyStore(client, 10*time.Minute), mr
}

// ==========================
// Fingerprint Tests
// ==========================

func TestFingerprint_StableForEqualInput(t *testing.T) {
	input := map[string]interface{}{"prompt": "fox", "quantity": 2}
	other := map[string]interface{}{"quantity": 2, "prompt": "fox"}

	assert.Equal(t, Fingerprint("u1", "turbo-image", input), Fingerprint("u1", "turbo-image", other),
		"key order must not change the fingerprint")
}

func TestFingerprint_DistinguishesCallers(t *testing.T) {
	input := map[string]interface{}{"prompt": "fox"}

	assert.NotEqual(t,
		Fingerprint("u1", "turbo-image", input),
		Fingerprint("u2", "turbo-image", input))
	assert.NotEqual(t,
		Fingerprint("u1", "turbo-image", input),
		Fingerprint("u1", "base-image", input))
}

// ==========================
// Redis Key Store Tests
// ==========================

func TestRedisKeyStore_ReusesKeyAcrossObtains(t *testing.T) {
	store, _ := newTestRedisKeyStore(t)
	ctx := context.Background()

	first, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// A crashed-and-retried submission must land on the same key.
	second, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.Obtain(ctx, "fp-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestRedisKeyStore_ReleaseForgets(t *testing.T) {
	store, _ := newTestRedisKeyStore(t)
	ctx := context.Background()

	first, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "fp-1"))

	next, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, next, "a released fingerprint starts a fresh attempt")
}

func TestRedisKeyStore_ExpiryStartsFreshAttempt(t *testing.T) {
	store, mr := newTestRedisKeyStore(t)
	ctx := context.Background()

	first, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	next, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, next)
}

// ==========================
// Memory Key Store Tests
// ==========================

func TestMemoryKeyStore(t *testing.T) {
	store := NewMemoryKeyStore()
	ctx := context.Background()

	first, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)

	second, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, store.Release(ctx, "fp-1"))
	third, err := store.Obtain(ctx, "fp-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
