package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by GetJSON when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores rendered listings and coordinates background jobs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Version returns the current version of a key namespace.
	Version(ctx context.Context, namespace string) (int64, error)
	// Bump invalidates every key built from the namespace's previous version.
	Bump(ctx context.Context, namespace string) error
	// TryLock acquires name for ttl. The returned func releases it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error)
}

// VersionedKey builds a cache key bound to the namespace version.
func VersionedKey(namespace string, version int64, suffix string) string {
	return fmt.Sprintf("%s:v%d:%s", namespace, version, suffix)
}

// RedisCache is a Cache on top of Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis using a redis:// URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// GetJSON decodes the value stored under key.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(val, dest)
}

// SetJSON stores value under key with expiration.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Version reads the namespace version counter.
func (c *RedisCache) Version(ctx context.Context, namespace string) (int64, error) {
	v, err := c.client.Get(ctx, namespace+":version").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump increments the namespace version counter.
func (c *RedisCache) Bump(ctx context.Context, namespace string) error {
	return c.client.Incr(ctx, namespace+":version").Err()
}

// releaseLock deletes the lock only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock takes a SET NX lock. The release is a no-op once the lock has
// expired and been taken by someone else.
func (c *RedisCache) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := "lock:" + name
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		if err := releaseLock.Run(context.Background(), c.client, []string{key}, token).Err(); err != nil {
			log.Printf("[Cache] Failed to release lock %s: %v", key, err)
		}
	}, true, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache never caches values but still provides in-process job locks.
type MemoryCache struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	token string
	until time.Time
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{locks: make(map[string]memoryLock)}
}

// GetJSON always misses.
func (c *MemoryCache) GetJSON(context.Context, string, interface{}) error { return ErrCacheMiss }

// SetJSON discards the value.
func (c *MemoryCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

// Version is always zero.
func (c *MemoryCache) Version(context.Context, string) (int64, error) { return 0, nil }

// Bump is a no-op.
func (c *MemoryCache) Bump(context.Context, string) error { return nil }

// TryLock takes an in-process lock.
func (c *MemoryCache) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.locks[name]; ok && time.Now().Before(held.until) {
		return func() {}, false, nil
	}
	token := uuid.NewString()
	c.locks[name] = memoryLock{token: token, until: time.Now().Add(ttl)}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if held, ok := c.locks[name]; ok && held.token == token {
			delete(c.locks, name)
		}
	}, true, nil
}
