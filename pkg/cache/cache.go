// Package cache provides the caching implementations used to keep hot
// configuration (exclusion rule sets) off the database on every ingest.
//
// Two implementations are provided: a Redis cache guarded by a circuit
// breaker, and an in-memory cache for development and tests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrInvalidKey       = errors.New("invalid cache key: key cannot be empty")
	ErrInvalidTTL       = errors.New("invalid ttl: must be positive")
)

// Cache defines the interface for caching implementations
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Stats() Stats
	Close() error
}

// Stats provides cache metrics
type Stats struct {
	Hits        uint64
	Misses      uint64
	Sets        uint64
	Deletes     uint64
	Errors      uint64
	HitRate     float64
	CircuitOpen bool
}

// cacheMetrics tracks cache performance
type cacheMetrics struct {
	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64
	errors  uint64
}

func (m *cacheMetrics) stats(circuitOpen bool) Stats {
	hits := atomic.LoadUint64(&m.hits)
	misses := atomic.LoadUint64(&m.misses)
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Sets:        atomic.LoadUint64(&m.sets),
		Deletes:     atomic.LoadUint64(&m.deletes),
		Errors:      atomic.LoadUint64(&m.errors),
		HitRate:     hitRate,
		CircuitOpen: circuitOpen,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	maxFailures  uint32
	resetTimeout time.Duration
	failures     uint32
	lastFailTime time.Time
	state        uint32 // 0=closed, 1=open, 2=half-open
	mu           sync.RWMutex
}

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(maxFailures uint32, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        circuitClosed,
	}
}

// Call executes a function with circuit breaker protection
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return ErrCacheUnavailable
	}

	err := fn()

	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canExecute() bool {
	switch atomic.LoadUint32(&cb.state) {
	case circuitClosed:
		return true
	case circuitOpen:
		cb.mu.RLock()
		elapsed := time.Since(cb.lastFailTime)
		cb.mu.RUnlock()

		if elapsed > cb.resetTimeout {
			atomic.StoreUint32(&cb.state, circuitHalfOpen)
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.maxFailures {
		atomic.StoreUint32(&cb.state, circuitOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if atomic.LoadUint32(&cb.state) == circuitHalfOpen {
		cb.failures = 0
		atomic.StoreUint32(&cb.state, circuitClosed)
	}
}

// IsOpen reports whether the breaker is currently rejecting calls
func (cb *CircuitBreaker) IsOpen() bool {
	return atomic.LoadUint32(&cb.state) == circuitOpen
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Client       *redis.Client
	MaxFailures  uint32
	ResetTimeout time.Duration
}

// RedisCache implements Redis-backed caching with a circuit breaker
type RedisCache struct {
	client         *redis.Client
	circuitBreaker *CircuitBreaker
	metrics        *cacheMetrics
}

// NewRedisCache creates a Redis cache and verifies connectivity
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := config.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}

	return &RedisCache{
		client:         config.Client,
		circuitBreaker: NewCircuitBreaker(config.MaxFailures, config.ResetTimeout),
		metrics:        &cacheMetrics{},
	}, nil
}

// Get retrieves and unmarshals a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if key == "" {
		return ErrInvalidKey
	}
	if dest == nil {
		return errors.New("destination cannot be nil")
	}

	var val string
	err := c.circuitBreaker.Call(func() error {
		var err error
		val, err = c.client.Get(ctx, key).Result()
		return err
	})

	if err == redis.Nil {
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		if errors.Is(err, ErrCacheUnavailable) {
			return err
		}
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	atomic.AddUint64(&c.metrics.hits, 1)
	return nil
}

// Set marshals and stores a value in cache
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.circuitBreaker.Call(func() error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("cache set failed: %w", err)
	}

	atomic.AddUint64(&c.metrics.sets, 1)
	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.circuitBreaker.Call(func() error {
		return c.client.Del(ctx, key).Err()
	})

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("cache delete failed: %w", err)
	}

	atomic.AddUint64(&c.metrics.deletes, 1)
	return nil
}

// Ping checks Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats returns cache statistics
func (c *RedisCache) Stats() Stats {
	return c.metrics.stats(c.circuitBreaker.IsOpen())
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// InMemoryCache is an in-memory cache for development and tests
type InMemoryCache struct {
	data    map[string]cacheItem
	mu      sync.RWMutex
	metrics *cacheMetrics
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	cache := &InMemoryCache{
		data:    make(map[string]cacheItem),
		metrics: &cacheMetrics{},
	}

	go cache.cleanup()

	return cache
}

// cleanup removes expired items periodically
func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.expiration) {
				delete(c.data, key)
			}
		}
		c.mu.Unlock()
	}
}

// Get retrieves a value from in-memory cache
func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	item, exists := c.data[key]
	c.mu.RUnlock()

	if !exists {
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if time.Now().After(item.expiration) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	atomic.AddUint64(&c.metrics.hits, 1)
	return nil
}

// Set stores a value in in-memory cache
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.mu.Lock()
	c.data[key] = cacheItem{
		value:      data,
		expiration: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	atomic.AddUint64(&c.metrics.sets, 1)
	return nil
}

// Delete removes a value from in-memory cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	atomic.AddUint64(&c.metrics.deletes, 1)
	return nil
}

// Ping always returns nil for in-memory cache
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Stats returns cache statistics
func (c *InMemoryCache) Stats() Stats {
	return c.metrics.stats(false)
}

// Close is a no-op for in-memory cache
func (c *InMemoryCache) Close() error {
	return nil
}
