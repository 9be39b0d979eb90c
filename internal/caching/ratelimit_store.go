package caching

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore is a keyed counter with fixed windows. Incr must be atomic
// (a lost update under concurrency would under-count admissions); the count
// is applied at admission and never rolled back on client disconnect.
type RateLimitStore interface {
	// Incr bumps the counter for key, starting a window of the given length
	// on first touch, and returns the post-increment count and the time
	// until the window rolls over.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
	// Peek returns the current count and remaining window without counting.
	Peek(ctx context.Context, key string) (count int64, resetIn time.Duration, err error)
	// Decr refunds one admission, used to uncount successful auth attempts.
	Decr(ctx context.Context, key string) error
}

const redisKeyPrefix = "gatekit:ratelimit:"

// redisRateLimitStore is the shared store for multi-instance deployments.
type redisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) RateLimitStore {
	return &redisRateLimitStore{client: client}
}

func (r *redisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	cacheKey := redisKeyPrefix + key

	// INCR and ExpireNX in one round trip; ExpireNX only arms the window on
	// the first increment so later requests cannot push the boundary out.
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, cacheKey)
	pipe.ExpireNX(ctx, cacheKey, window)
	ttl := pipe.TTL(ctx, cacheKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = window
	}
	return incr.Val(), resetIn, nil
}

func (r *redisRateLimitStore) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	cacheKey := redisKeyPrefix + key

	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, cacheKey)
	ttl := pipe.TTL(ctx, cacheKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}

	count, err := get.Int64()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = 0
	}
	return count, resetIn, nil
}

func (r *redisRateLimitStore) Decr(ctx context.Context, key string) error {
	cacheKey := redisKeyPrefix + key
	// DECR on a missing key would leave a negative counter with no TTL.
	exists, err := r.client.Exists(ctx, cacheKey).Result()
	if err != nil || exists == 0 {
		return err
	}
	return r.client.Decr(ctx, cacheKey).Err()
}

const memoryShards = 32

// memoryRateLimitStore is a sharded in-process store for single-instance
// deployments and tests. It does not enforce a global budget across replicas.
type memoryRateLimitStore struct {
	shards [memoryShards]*memoryShard
	now    func() time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	count    int64
	windowAt time.Time
	window   time.Duration
}

func NewMemoryRateLimitStore() RateLimitStore {
	return newMemoryRateLimitStore(time.Now)
}

func newMemoryRateLimitStore(now func() time.Time) *memoryRateLimitStore {
	s := &memoryRateLimitStore{now: now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{buckets: make(map[string]*memoryBucket)}
	}
	return s
}

func (s *memoryRateLimitStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShards]
}

func (s *memoryRateLimitStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := s.now()
	b, ok := shard.buckets[key]
	if !ok || now.Sub(b.windowAt) >= b.window {
		shard.buckets[key] = &memoryBucket{count: 1, windowAt: now, window: window}
		return 1, window, nil
	}

	b.count++
	return b.count, b.window - now.Sub(b.windowAt), nil
}

func (s *memoryRateLimitStore) Peek(_ context.Context, key string) (int64, time.Duration, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := s.now()
	b, ok := shard.buckets[key]
	if !ok || now.Sub(b.windowAt) >= b.window {
		return 0, 0, nil
	}
	return b.count, b.window - now.Sub(b.windowAt), nil
}

func (s *memoryRateLimitStore) Decr(_ context.Context, key string) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := s.now()
	b, ok := shard.buckets[key]
	if !ok || now.Sub(b.windowAt) >= b.window {
		return nil
	}
	if b.count > 0 {
		b.count--
	}
	return nil
}
