package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/gymlog/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

// Backend stores raw cache entries. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type Fetcher[T any] func(ctx context.Context) (T, error)

// stamp identifies the cache contents a fetch started from. A write is only
// accepted while the stamp still matches.
type stamp struct {
	gen   uint64
	epoch uint64
}

// Cache is a stale-while-revalidate cache of T values, JSON encoded into a Backend
// under the "<name>:" key namespace.
type Cache[T any] struct {
	name           string
	backend        Backend
	ttl            time.Duration
	metricsManager *metrics.Manager

	mutex       sync.Mutex
	generations map[string]uint64
	epoch       uint64
	refreshing  map[string]bool
	listeners   []func(key string, value T)

	wg sync.WaitGroup
}

func New[T any](name string, backend Backend, ttl time.Duration, metricsManager *metrics.Manager) *Cache[T] {
	return &Cache[T]{
		name:           name,
		backend:        backend,
		ttl:            ttl,
		metricsManager: metricsManager,
		generations:    make(map[string]uint64),
		refreshing:     make(map[string]bool),
	}
}

func (c *Cache[T]) Name() string {
	return c.name
}

func (c *Cache[T]) fullKey(key string) string {
	return c.name + ":" + key
}

// Get returns the cached value for key when present and force is false, and starts a
// background refresh for it. Otherwise it awaits fetch and caches the result.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch Fetcher[T], force bool) (T, error) {
	if !force {
		if value, ok := c.lookup(ctx, key); ok {
			c.countLookup("hit")
			c.refresh(ctx, key, fetch)
			return value, nil
		}
	}

	c.countLookup("miss")
	st := c.stamp(key)
	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.store(ctx, key, st, value)

	return value, nil
}

// Invalidate drops key, so the next Get awaits a fresh fetch. Refreshes already in
// flight for key will not write their result back.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.generations[key]++
	if err := c.backend.Del(ctx, c.fullKey(key)); err != nil {
		return fmt.Errorf("invalidate %s: %w", c.fullKey(key), err)
	}
	return nil
}

// Clear drops every entry of the cache.
func (c *Cache[T]) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.epoch++
	if err := c.backend.DeletePrefix(ctx, c.name+":"); err != nil {
		return fmt.Errorf("clear cache %s: %w", c.name, err)
	}
	return nil
}

// OnRefresh registers fn to be called with the result of every background refresh
// that was written back.
func (c *Cache[T]) OnRefresh(fn func(key string, value T)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Wait blocks until all background refreshes are done.
func (c *Cache[T]) Wait() {
	c.wg.Wait()
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var value T
	raw, found, err := c.backend.Get(ctx, c.fullKey(key))
	if err != nil {
		log.Errorf("cache %s: get %s: %s", c.name, key, err)
		return value, false
	}
	if !found {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Errorf("cache %s: decode %s: %s", c.name, key, err)
		return value, false
	}
	return value, true
}

func (c *Cache[T]) stamp(key string) stamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return stamp{gen: c.generations[key], epoch: c.epoch}
}

// store writes value unless key was invalidated or the cache cleared since st was taken.
func (c *Cache[T]) store(ctx context.Context, key string, st stamp, value T) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Errorf("cache %s: encode %s: %s", c.name, key, err)
		return false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.generations[key] != st.gen || c.epoch != st.epoch {
		log.Debugf("cache %s: dropping stale value for %s", c.name, key)
		return false
	}
	if err := c.backend.Set(ctx, c.fullKey(key), raw, c.ttl); err != nil {
		log.Errorf("cache %s: set %s: %s", c.name, key, err)
		c.countWriteFailure()
		return false
	}
	return true
}

func (c *Cache[T]) refresh(ctx context.Context, key string, fetch Fetcher[T]) {
	c.mutex.Lock()
	if c.refreshing[key] {
		c.mutex.Unlock()
		return
	}
	c.refreshing[key] = true
	st := stamp{gen: c.generations[key], epoch: c.epoch}
	c.wg.Add(1)
	c.mutex.Unlock()

	// the request that triggered the refresh may be long gone when it completes
	refreshCtx := context.WithoutCancel(ctx)

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mutex.Lock()
			delete(c.refreshing, key)
			c.mutex.Unlock()
		}()

		value, err := fetch(refreshCtx)
		if err != nil {
			log.Warnf("cache %s: background refresh of %s: %s", c.name, key, err)
			return
		}
		if !c.store(refreshCtx, key, st, value) {
			return
		}

		c.mutex.Lock()
		listeners := make([]func(string, T), len(c.listeners))
		copy(listeners, c.listeners)
		c.mutex.Unlock()

		for _, fn := range listeners {
			fn(key, value)
		}
	}()
}

func (c *Cache[T]) countLookup(result string) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterCacheLookups.WithLabelValues(c.name, result).Inc()
}

func (c *Cache[T]) countWriteFailure() {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterCacheWriteFailures.WithLabelValues(c.name).Inc()
}
