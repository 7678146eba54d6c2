package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// Cache is a keyed, in-memory store that asynchronously pre-loads items
// it anticipates will be requested next, under a strict cap on resident
// entries (spec §1-§9). The zero value is not usable; construct with New.
type Cache[K Key, V any] struct {
	cfg Config[K, V]

	mu       sync.Mutex
	resident *residentStore[K, V]
	inflight *inflightTable[K, V]
	history  *accessHistory[K]
	current  K
	hasCurrent bool
	counters Counters

	predictor *predictionDriver[K, V]
	metrics   *cacheMetrics
	events    *eventHub[K]

	pool *prefetchPool[K, V]

	notifyCh chan struct{}
	resultCh chan prefetchResult[K, V]
	closeCh  chan struct{}
	workerWG sync.WaitGroup

	closed atomic.Bool
	closeOnce sync.Once
}

// New constructs a Cache and starts its background worker. Callers must
// eventually call Close.
func New[K Key, V any](cfg Config[K, V]) (*Cache[K, V], error) {
	if cfg.Provider == nil {
		return nil, &InvariantViolation{Reason: "config: Provider is required"}
	}
	cfg.applyDefaults()

	c := &Cache[K, V]{
		cfg:      cfg,
		resident: newResidentStore[K, V](cfg.MaxKeysCached),
		inflight: newInflightTable[K, V](),
		history:  newAccessHistory[K](cfg.HistorySize),
		metrics:  newCacheMetrics("prefetchcache"),
		events:   &eventHub[K]{},
		notifyCh: make(chan struct{}, 1),
		resultCh: make(chan prefetchResult[K, V], maxInt(cfg.MaxKeysPrefetched, 1)),
		closeCh:  make(chan struct{}),
	}
	if cfg.Predictor != nil {
		c.predictor = newPredictionDriver[K, V](cfg.Predictor, cfg.PredictionMemoSize)
	}
	if cfg.OnEvent != nil {
		ch := make(chan Event[K], 64)
		sub := c.events.subscribe(ch)
		go c.dispatchEvents(ch, sub)
	}
	if cfg.MaxKeysPrefetched > 0 {
		pool, err := newPrefetchPool[K, V](cfg.PrefetchWorkers, c.resultCh)
		if err != nil {
			return nil, err
		}
		c.pool = pool
	}

	c.workerWG.Add(1)
	go c.mainLoop()

	return c, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// dispatchEvents drains the feed subscription and invokes the configured
// OnEvent callback outside of any lock. It stops when closeCh is closed
// and then unsubscribes; the subscription's Err channel is not watched.
func (c *Cache[K, V]) dispatchEvents(ch chan Event[K], sub event.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case ev := <-ch:
			c.cfg.OnEvent(ev)
		case <-c.closeCh:
			return
		}
	}
}

// Get returns the value for key, loading it synchronously on a miss
// (spec §4.1/§4.2). Only an immediate resident hit is accounted as a
// "hit"; joining an in-flight load or issuing a fresh synchronous load
// both count as a "miss" (see DESIGN.md Open Question resolutions).
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	if c.closed.Load() {
		return zero, ErrClosed
	}

	c.mu.Lock()
	if v, ok := c.resident.get(key); ok {
		c.current = key
		c.hasCurrent = true
		c.history.record(key)
		c.counters.Hits++
		c.mu.Unlock()
		c.metrics.markHit()
		c.notify()
		return v, nil
	}

	if p, ok := c.inflight.get(key); ok {
		// Joining an in-flight load is still an access: history, current
		// key and the worker notification are not conditioned on
		// hit/miss/join (spec §4.6's access(key) source, invariant 5).
		c.current = key
		c.hasCurrent = true
		c.history.record(key)
		c.counters.Misses++
		c.mu.Unlock()
		c.metrics.markMiss()
		c.notify()
		v, err := p.wait(ctx)
		if err != nil {
			if err == ErrClosed {
				return zero, ErrClosed
			}
			return zero, &LoadError{Key: key, Err: err}
		}
		return v, nil
	}

	// Fresh synchronous miss: record history and notify the worker before
	// the provider call (Open Question resolution), reserve the in-flight
	// slot, then load outside the lock.
	c.history.record(key)
	c.current = key
	c.hasCurrent = true
	c.counters.Misses++
	p := c.inflight.start(key, loadKindSync)
	c.mu.Unlock()

	c.notify()
	c.metrics.markMiss()
	c.events.publish(Event[K]{Kind: EventCacheLoadStart, Key: key})

	v, err := c.cfg.Provider.Load(ctx, key)
	p.complete(v, err)

	c.mu.Lock()
	c.inflight.remove(key, p)
	if err == nil {
		c.commitLocked(key, v)
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.markLoadError()
		c.events.publish(Event[K]{Kind: EventCacheLoadError, Key: key, Err: err})
		log.Debug("prefetchcache: synchronous load failed", "key", key, "err", err)
		return zero, &LoadError{Key: key, Err: err}
	}
	c.events.publish(Event[K]{Kind: EventCacheLoadComplete, Key: key})
	c.notify()
	return v, nil
}

// commitLocked installs value as resident for key, evicting victims first
// if capacity demands it. Caller holds c.mu.
func (c *Cache[K, V]) commitLocked(key K, value V) {
	if c.resident.has(key) {
		return
	}
	if c.resident.len() >= c.cfg.MaxKeysCached {
		shed := c.resident.len() - c.cfg.MaxKeysCached + 1
		victims := c.cfg.EvictionPolicy.SelectVictims(c.resident.iterByAge(), shed)
		for _, vk := range victims {
			c.resident.remove(vk)
			c.counters.Evictions++
			c.metrics.markEviction(1)
			c.events.publish(Event[K]{Kind: EventCacheEvict, Key: vk})
		}
	}
	c.resident.insert(key, value)
}

// notify wakes the background worker for a reconciliation pass, coalescing
// bursts of calls into a single pending wakeup.
func (c *Cache[K, V]) notify() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

// Stats exposes resident/in-flight cardinalities, the always-on counters
// spec.md §3/§4.8 mandates (hits, misses, prefetch_issued,
// prefetch_completed, prefetch_cancelled, prefetch_errors, evictions,
// active_prefetch_tasks), and the provider's own diagnostics.
func (c *Cache[K, V]) Stats() map[string]any {
	c.mu.Lock()
	resident := c.resident.len()
	inflight := c.inflight.len()
	counters := c.snapshotCountersLocked()
	c.mu.Unlock()

	stats := map[string]any{
		"resident_count":        resident,
		"inflight_count":        inflight,
		"hits":                  counters.Hits,
		"misses":                counters.Misses,
		"prefetch_issued":       counters.PrefetchIssued,
		"prefetch_completed":    counters.PrefetchCompleted,
		"prefetch_cancelled":    counters.PrefetchCancelled,
		"prefetch_errors":       counters.PrefetchErrors,
		"evictions":             counters.Evictions,
		"active_prefetch_tasks": counters.ActivePrefetchTasks,
	}
	for k, v := range c.cfg.Provider.Stats() {
		stats[k] = v
	}
	return stats
}

// StatsCounters is like Stats but returns the typed counters directly,
// without the provider passthrough, for callers (and tests) that want to
// assert on them without map key lookups.
func (c *Cache[K, V]) StatsCounters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotCountersLocked()
}

// CacheSnapshot is a point-in-time view of what a Cache is holding and
// working on, for diagnostics and tests.
type CacheSnapshot[K Key, V any] struct {
	Resident []Entry[K, V]
	InFlight []K
}

// Snapshot returns resident entries (oldest first) together with the
// currently in-flight keys. It does not affect access history or
// eviction order.
func (c *Cache[K, V]) Snapshot() CacheSnapshot[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheSnapshot[K, V]{
		Resident: c.resident.iterByAge(),
		InFlight: c.inflight.keys(),
	}
}
