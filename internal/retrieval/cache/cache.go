// Package cache keeps one built retrieval index per collection.
//
// Every entry carries a generation drawn from a cache-wide counter. A lookup
// records the generation it saw, builds without holding any lock, and installs
// the result only if the entry it saw is still current. Invalidate drops
// the entry, so a build that raced with a mutation is served to its callers
// but never cached.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/cortex/internal/retrieval"
)

// Builder builds a fresh index for a collection.
type Builder interface {
	Build(ctx context.Context, name string) (retrieval.Index, error)
}

type entry struct {
	gen uint64
	idx retrieval.Index
}

// Cache maps collection names to built indexes.
type Cache struct {
	build Builder

	mu      sync.Mutex
	entries map[string]*entry
	nextGen uint64

	group singleflight.Group

	lookups       *prometheus.CounterVec
	buildDuration prometheus.Observer
	logger        *zap.Logger
}

// New creates an empty cache.
// lookups is a counter vec with label "result" ("hit"/"miss"/"stale") and
// buildDuration observes build seconds; both are passed explicitly and may be nil.
func New(b Builder, lookups *prometheus.CounterVec, buildDuration prometheus.Observer, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		build:         b,
		entries:       make(map[string]*entry),
		lookups:       lookups,
		buildDuration: buildDuration,
		logger:        logger,
	}
}

// Get returns the cached index for name, building it on a miss.
// Concurrent misses for the same generation share one build.
func (c *Cache) Get(ctx context.Context, name string) (retrieval.Index, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		c.nextGen++
		e = &entry{gen: c.nextGen}
		c.entries[name] = e
	}
	if e.idx != nil {
		idx := e.idx
		c.mu.Unlock()
		c.inc("hit")
		return idx, nil
	}
	gen := e.gen
	c.mu.Unlock()
	c.inc("miss")

	key := name + "@" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		start := time.Now()
		idx, err := c.build.Build(context.WithoutCancel(ctx), name)
		if c.buildDuration != nil {
			c.buildDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return nil, err
		}
		c.logger.Debug("index built",
			zap.String("collection", name),
			zap.Int("chunks", idx.Len()),
			zap.Duration("duration", time.Since(start)),
		)
		return idx, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.entries[name] == e

	if res.Err != nil {
		if current && e.idx == nil {
			delete(c.entries, name)
		}
		return nil, res.Err
	}

	idx := res.Val.(retrieval.Index)
	switch {
	case !current:
		c.inc("stale")
	case e.idx == nil:
		e.idx = idx
	default:
		idx = e.idx
	}
	return idx, nil
}

// Invalidate drops the entry for name. Builds already running for it are
// not installed.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// Len returns the number of collections with a built index.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.idx != nil {
			n++
		}
	}
	return n
}

func (c *Cache) inc(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
