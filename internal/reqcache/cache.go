// Package reqcache memoizes backend loads by request key. Concurrent callers
// for one key share a single in-flight load; resolved values stay until they
// are invalidated, and failures are remembered briefly so a failing endpoint
// is not hammered by rapid re-renders.
package reqcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"cidash/internal/logging"
	"cidash/internal/metrics"
)

const (
	// DefaultFailureGrace is how long a failed load is served from cache.
	DefaultFailureGrace = 2 * time.Second
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 512
)

// Loader performs the actual load for a key.
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	val V
	err error
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	failureGrace time.Duration
	capacity     uint64
	logger       logr.Logger
}

// WithFailureGrace sets how long a failure is remembered.
func WithFailureGrace(d time.Duration) Option {
	return func(o *options) { o.failureGrace = d }
}

// WithCapacity bounds the number of retained entries.
func WithCapacity(n uint64) Option {
	return func(o *options) { o.capacity = n }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache is safe for concurrent use and meant to be shared by every
// controller in the process.
type Cache[V any] struct {
	opts    options
	entries *ttlcache.Cache[string, entry[V]]
	group   singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64 // bumped by Invalidate

	stopOnce sync.Once
}

// New creates a cache and starts its expiry loop. Call Stop when done.
func New[V any](opts ...Option) *Cache[V] {
	o := options{
		failureGrace: DefaultFailureGrace,
		capacity:     DefaultCapacity,
		logger:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		opts: o,
		entries: ttlcache.New(
			ttlcache.WithTTL[string, entry[V]](ttlcache.NoTTL),
			ttlcache.WithCapacity[string, entry[V]](o.capacity),
			ttlcache.WithDisableTouchOnHit[string, entry[V]](),
		),
		gen: make(map[string]uint64),
	}
	go c.entries.Start()
	return c
}

// Stop ends the expiry loop. Later calls are no-ops.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(c.entries.Stop)
}

// Peek returns a resolved value for key without loading. Failed markers and
// missing entries report false.
func (c *Cache[V]) Peek(key string) (V, bool) {
	var zero V
	item := c.entries.Get(key)
	if item == nil || item.Value().err != nil {
		return zero, false
	}
	return item.Value().val, true
}

// Fetch returns the value for key, calling load only when there is neither a
// cached entry nor an in-flight load for it. Cancelling ctx abandons the wait
// but not the shared load.
func (c *Cache[V]) Fetch(ctx context.Context, key string, load Loader[V]) (V, error) {
	var zero V
	log := c.opts.logger.WithValues("key", key)

	if item := c.entries.Get(key); item != nil {
		e := item.Value()
		if e.err != nil {
			metrics.RecordCacheLookup(metrics.LookupFailed)
			log.V(logging.DEBUG).Info("Serving cached failure", "err", e.err)
			return zero, e.err
		}
		metrics.RecordCacheLookup(metrics.LookupHit)
		return e.val, nil
	}
	metrics.RecordCacheLookup(metrics.LookupMiss)

	gen := c.generation(key)
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		log.V(logging.TRACE).Info("Loading")
		val, err := load(loadCtx)
		c.store(key, gen, entry[V]{val: val, err: err})
		return val, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordSharedLoad()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		val, ok := res.Val.(V)
		if !ok {
			return zero, fmt.Errorf("reqcache: unexpected value type %T for %q", res.Val, key)
		}
		return val, nil
	}
}

// Invalidate drops key. A load already in flight for key will not repopulate
// the cache when it completes.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	c.gen[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	c.entries.Delete(key)
}

// Len reports the number of retained entries, failures included.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

func (c *Cache[V]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

func (c *Cache[V]) store(key string, gen uint64, e entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[key] != gen {
		return
	}
	ttl := ttlcache.NoTTL
	if e.err != nil {
		if c.opts.failureGrace <= 0 {
			return
		}
		ttl = c.opts.failureGrace
	}
	c.entries.Set(key, e, ttl)
}
