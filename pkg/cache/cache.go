package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int

	// LoadTimeout bounds a shared loader call. Loaders run detached from
	// any single caller's cancellation.
	LoadTimeout time.Duration
}

type MetricsHooks struct {
	OnHit   func()
	OnMiss  func()
	OnError func()
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache with LRU eviction. Concurrent misses for the same key
// share one loader call. Loader errors are never cached. A caller that gives
// up only stops waiting; the shared load keeps going for the others.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
	now     func() time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Cache[V]{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		opts:    opts,
		metrics: hooks,
		now:     time.Now,
	}
}

type Loader[V any] func(ctx context.Context, key string) (V, error)

func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, error) {
	if v, ok := c.lookup(key); ok {
		if c.metrics.OnHit != nil {
			c.metrics.OnHit()
		}
		return v, nil
	}
	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss()
	}

	ch := c.sf.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
		defer cancel()
		v, err := loader(loadCtx, key)
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	})

	var result interface{}
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if c.metrics.OnError != nil {
				c.metrics.OnError()
			}
			var zero V
			return zero, res.Err
		}
		result = res.Val
	}
	v, ok := result.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: unexpected value type %T", result)
	}
	return v, nil
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(el)
		delete(c.items, key)
		return zero, false
	}
	c.lru.MoveToFront(el)
	return e.value, true
}

func (c *Cache[V]) store(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires := c.now().Add(c.opts.TTL)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = v
		e.expiresAt = expires
		c.lru.MoveToFront(el)
		return
	}
	c.items[key] = c.lru.PushFront(&entry[V]{key: key, value: v, expiresAt: expires})
	for c.opts.MaxEntries > 0 && c.lru.Len() > c.opts.MaxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}

// Len reports the number of stored entries, including expired ones not yet
// evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Delete removes a key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.lru.Remove(el)
		delete(c.items, key)
	}
}
