package caching

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncr_CountsWithinWindow(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, resetIn, err := store.Incr(ctx, "tier:ip:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Greater(t, resetIn, time.Duration(0))
	}
}

func TestMemoryStoreIncr_IndependentKeys(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	count1, _, err := store.Incr(ctx, "tier:ip:10.0.0.1", time.Minute)
	require.NoError(t, err)
	count2, _, err := store.Incr(ctx, "tier:ip:10.0.0.2", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count1)
	assert.Equal(t, int64(1), count2)
}

func TestMemoryStoreIncr_WindowRollover(t *testing.T) {
	now := time.Now()
	store := newMemoryRateLimitStore(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.Incr(ctx, "rollover", time.Minute)
		require.NoError(t, err)
	}

	count, _, err := store.Peek(ctx, "rollover")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// A request one second before the boundary still lands in the old window.
	now = now.Add(59 * time.Second)
	count, _, err = store.Incr(ctx, "rollover", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// Crossing the boundary starts a fresh window at one.
	now = now.Add(2 * time.Second)
	count, resetIn, err := store.Incr(ctx, "rollover", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, resetIn)
}

func TestMemoryStorePeek_NeverCounts(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	count, resetIn, err := store.Peek(ctx, "untouched")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, time.Duration(0), resetIn)

	_, _, err = store.Incr(ctx, "untouched", time.Minute)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		count, _, err = store.Peek(ctx, "untouched")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestMemoryStoreDecr(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "refund", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Incr(ctx, "refund", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Decr(ctx, "refund"))

	count, _, err := store.Peek(ctx, "refund")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Decr never drives a counter negative and tolerates missing keys.
	require.NoError(t, store.Decr(ctx, "refund"))
	require.NoError(t, store.Decr(ctx, "refund"))
	count, _, err = store.Peek(ctx, "refund")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, store.Decr(ctx, "never-seen"))
}

// Concurrent callers over one shared key must observe a strictly serialized
// counter: with ceiling N and C > N concurrent requests, exactly N pass.
func TestMemoryStoreIncr_ConcurrentAdmissions(t *testing.T) {
	store := NewMemoryRateLimitStore()
	ctx := context.Background()

	const ceiling = 50
	const callers = 200

	var admitted int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			count, _, err := store.Incr(ctx, "contended", time.Minute)
			assert.NoError(t, err)
			if count <= ceiling {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(ceiling), admitted)

	count, _, err := store.Peek(ctx, "contended")
	require.NoError(t, err)
	assert.Equal(t, int64(callers), count)
}

func newTestRedisStore(t *testing.T) (RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimitStore(client), mr
}

func TestRedisStoreIncr_CountsWithinWindow(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, resetIn, err := store.Incr(ctx, "tier:ip:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Greater(t, resetIn, time.Duration(0))
	}
}

func TestRedisStoreIncr_WindowRollover(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "rollover", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Incr(ctx, "rollover", time.Minute)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	count, resetIn, err := store.Incr(ctx, "rollover", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, resetIn)
}

// ExpireNX must arm the window on first touch only; later increments cannot
// push the boundary out.
func TestRedisStoreIncr_WindowNotExtended(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "fixed", time.Minute)
	require.NoError(t, err)

	mr.FastForward(30 * time.Second)

	_, resetIn, err := store.Incr(ctx, "fixed", time.Minute)
	require.NoError(t, err)
	assert.LessOrEqual(t, resetIn, 30*time.Second)
}

func TestRedisStorePeek(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	count, _, err := store.Peek(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, _, err = store.Incr(ctx, "seen", time.Minute)
	require.NoError(t, err)

	count, resetIn, err := store.Peek(ctx, "seen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Greater(t, resetIn, time.Duration(0))
}

func TestRedisStoreDecr(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	// Decr on a missing key must not create a negative counter.
	require.NoError(t, store.Decr(ctx, "missing"))
	count, _, err := store.Peek(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, _, err = store.Incr(ctx, "seen", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Incr(ctx, "seen", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Decr(ctx, "seen"))
	count, _, err = store.Peek(ctx, "seen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStoreIncr_StoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	mr.Close()

	_, _, err := store.Incr(ctx, "down", time.Minute)
	assert.Error(t, err)
}
