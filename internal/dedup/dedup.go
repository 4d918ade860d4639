// Package dedup remembers inbound platform message ids so retried webhook
// deliveries are acknowledged without running the pipeline twice.
package dedup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

// Store defines the interface for de-duplication storage.
type Store interface {
	// FirstSeen records key and reports whether it was new.
	FirstSeen(ctx context.Context, key string) (bool, error)

	// Close releases any resources.
	Close() error
}

// StoreType represents the type of store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption is a functional option for configuring a store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
	now         func() time.Time
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets how long a key is remembered.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithClock overrides time.Now for the memory store.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// NewStore creates a Store of the given type. Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{ttl: 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(config)
	}
	if config.ttl <= 0 {
		config.ttl = 24 * time.Hour
	}

	switch storeType {
	case StoreTypeMemory:
		return &memoryStore{
			seen: make(map[string]time.Time),
			ttl:  config.ttl,
			now:  config.now,
		}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{client: config.redisClient, ttl: config.ttl}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// memoryStore implements Store with an expiring map.
type memoryStore struct {
	mu        sync.Mutex
	seen      map[string]time.Time // key -> expiry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func (s *memoryStore) FirstSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.seen[key]; ok && now.Before(exp) {
		return false, nil
	}

	if !now.Before(s.nextSweep) {
		s.sweep(now)
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}

// sweep drops expired keys. It runs at most once per TTL, which keeps the
// map within two TTL windows of keys.
func (s *memoryStore) sweep(now time.Time) {
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.seen)
	return nil
}

// redisStore implements Store with SET NX and a TTL, shared across replicas.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *redisStore) FirstSeen(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "dedup:"+key, 1, s.ttl).Result()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
