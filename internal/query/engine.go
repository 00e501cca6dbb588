// Package query implements the query agent (spec §4.6): graph traversal,
// path finding, cycle detection, hotspot scoring and impact analysis over
// the entity/relationship graph held by internal/store, fronted by an LRU
// result cache that invalidates on index:updated.
package query

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"codegraph/internal/bus"
	"codegraph/internal/config"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Engine answers graph queries against the shared store. A single Engine
// is shared by every caller; concurrency is bounded by sem rather than by
// one-query-at-a-time locking, matching the query agent's MaxConcurrency
// capability (spec §5).
type Engine struct {
	store *store.Manager
	bus   *bus.Bus
	log   *logging.Logger

	cacheMu sync.Mutex
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration

	weights    config.HotspotWeights
	simpleTO   time.Duration
	complexTO  time.Duration

	sem  *semaphore.Weighted
	stop chan struct{}
}

// Options configures a new Engine.
type Options struct {
	CacheCapacity int
	CacheTTL      time.Duration
	Weights       config.HotspotWeights
	SimpleTimeout time.Duration
	ComplexTimeout time.Duration
	MaxConcurrency int
}

// New builds a query Engine bound to s and subscribed to b for cache
// invalidation and concurrency adjustment.
func New(s *store.Manager, b *bus.Bus, opts Options) *Engine {
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.SimpleTimeout <= 0 {
		opts.SimpleTimeout = 100 * time.Millisecond
	}
	if opts.ComplexTimeout <= 0 {
		opts.ComplexTimeout = time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}

	cache, _ := lru.New[string, cacheEntry](opts.CacheCapacity)
	e := &Engine{
		store:     s,
		bus:       b,
		log:       logging.Get(logging.Query),
		cache:     cache,
		ttl:       opts.CacheTTL,
		weights:   opts.Weights,
		simpleTO:  opts.SimpleTimeout,
		complexTO: opts.ComplexTimeout,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		stop:      make(chan struct{}),
	}
	if b != nil {
		go e.watchBus()
	}
	return e
}

// Stop ends the engine's bus subscriptions.
func (e *Engine) Stop() { close(e.stop) }

// watchBus invalidates the cache on index:updated and replaces (not
// resizes) the concurrency semaphore on resources:adjusted, per spec §4.6:
// in-flight permits on the old semaphore are allowed to drain naturally.
func (e *Engine) watchBus() {
	indexCh, unsubIndex := e.bus.Subscribe("index:updated")
	defer unsubIndex()
	resourceCh, unsubResource := e.bus.Subscribe("resources:adjusted")
	defer unsubResource()
	for {
		select {
		case entry, ok := <-indexCh:
			if !ok {
				return
			}
			e.invalidateAffected(entry)
		case entry, ok := <-resourceCh:
			if !ok {
				return
			}
			e.onResourcesAdjusted(entry)
		case <-e.stop:
			return
		}
	}
}

// invalidateAffected evicts only the cached queries whose params reference
// the file or entities an index:updated event just touched (spec §4.6),
// rather than purging the whole cache. A cache key is built as
// "operation:param1:param2..." (see operations.go/traversal.go/hotspots.go),
// so a query is "affected" when the updated filePath or one of the updated
// entity ids appears verbatim in its key. Whole-graph queries with no
// file/entity param (e.g. detectCycles) never match and are left to expire
// by TTL, matching the spec's own "params reference the updated file/entity"
// wording.
func (e *Engine) invalidateAffected(entry types.BusEntry) {
	data, _ := entry.Data.(map[string]any)
	filePath, _ := data["filePath"].(string)
	entityIDs := stringSliceFromBusData(data["entityIds"])

	e.cacheMu.Lock()
	evicted := 0
	for _, key := range e.cache.Keys() {
		if !queryKeyReferences(key, filePath, entityIDs) {
			continue
		}
		e.cache.Remove(key)
		evicted++
	}
	e.cacheMu.Unlock()

	if e.bus != nil {
		e.bus.Emit("query:cache_invalidated", map[string]any{
			"reason":   "index:updated",
			"filePath": filePath,
			"evicted":  evicted,
		}, "query", nil)
	}
}

// queryKeyReferences reports whether a cache key was built from params that
// reference filePath or any id in entityIDs.
func queryKeyReferences(key, filePath string, entityIDs []string) bool {
	if filePath != "" && strings.Contains(key, filePath) {
		return true
	}
	for _, id := range entityIDs {
		if id != "" && strings.Contains(key, id) {
			return true
		}
	}
	return false
}

// stringSliceFromBusData normalizes an index:updated event's "entityIds"
// field, which arrives as []string when published in-process but may
// decode as []any from a round-tripped JSON payload.
func stringSliceFromBusData(v any) []string {
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, e := range ids {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (e *Engine) onResourcesAdjusted(entry types.BusEntry) {
	data, ok := entry.Data.(map[string]any)
	if !ok {
		return
	}
	concurrency, ok := data["maxConcurrency"].(float64)
	if !ok || concurrency <= 0 {
		return
	}
	e.cacheMu.Lock()
	e.sem = semaphore.NewWeighted(int64(concurrency))
	e.cacheMu.Unlock()
}

// withCache executes fn under the engine's concurrency limiter, serving a
// cached result for key when present and unexpired.
func (e *Engine) withCache(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) (any, error)) (any, error) {
	e.cacheMu.Lock()
	if v, ok := e.cache.Get(key); ok && time.Now().Before(v.expiresAt) {
		e.cacheMu.Unlock()
		return v.value, nil
	}
	e.cacheMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.Wrap(errs.KindBackpressure, "query: acquire concurrency slot", err)
	}
	defer e.sem.Release(1)

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	e.cacheMu.Lock()
	e.cache.Add(key, cacheEntry{value: result, expiresAt: time.Now().Add(e.ttl)})
	e.cacheMu.Unlock()
	return result, nil
}
