package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	type testData struct {
		Name  string
		Value int
	}

	data := testData{Name: "test", Value: 42}

	err := cache.Set(ctx, "test-key", data, 1*time.Minute)
	assert.NoError(t, err)

	var retrieved testData
	err = cache.Get(ctx, "test-key", &retrieved)
	assert.NoError(t, err)
	assert.Equal(t, data.Name, retrieved.Name)
	assert.Equal(t, data.Value, retrieved.Value)
}

func TestInMemoryCache_GetMiss(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	var result string
	err := cache.Get(ctx, "non-existent", &result)

	assert.Error(t, err)
	assert.Equal(t, ErrCacheMiss, err)
}

func TestInMemoryCache_TTLExpiration(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	err := cache.Set(ctx, "expire-key", "value", 100*time.Millisecond)
	assert.NoError(t, err)

	var result string
	err = cache.Get(ctx, "expire-key", &result)
	assert.NoError(t, err)
	assert.Equal(t, "value", result)

	time.Sleep(150 * time.Millisecond)

	err = cache.Get(ctx, "expire-key", &result)
	assert.Error(t, err)
	assert.Equal(t, ErrCacheMiss, err)
}

func TestInMemoryCache_Delete(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	err := cache.Set(ctx, "delete-key", "value", 1*time.Minute)
	assert.NoError(t, err)

	err = cache.Delete(ctx, "delete-key")
	assert.NoError(t, err)

	var result string
	err = cache.Get(ctx, "delete-key", &result)
	assert.Equal(t, ErrCacheMiss, err)
}

func TestInMemoryCache_Stats(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	_ = cache.Set(ctx, "key", "value", 1*time.Minute)

	var result string
	_ = cache.Get(ctx, "key", &result)
	_ = cache.Get(ctx, "missing", &result)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Sets)
	assert.InDelta(t, 50.0, stats.HitRate, 0.01)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 1*time.Minute)
	failing := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		err := cb.Call(failing)
		assert.Error(t, err)
	}

	assert.True(t, cb.IsOpen())

	err := cb.Call(func() error { return nil })
	assert.Equal(t, ErrCacheUnavailable, err)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("boom") })
	assert.True(t, cb.IsOpen())

	time.Sleep(75 * time.Millisecond)

	err := cb.Call(func() error { return nil })
	assert.NoError(t, err)
	assert.False(t, cb.IsOpen())
}
