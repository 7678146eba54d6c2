package cache

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panjf2000/ants/v2"
)

// prefetchTask is submitted to the ants pool for each speculative load.
// loadFunc performs the provider call and pushes the outcome to the
// result channel; it is built by issuePrefetch, which is the only place
// that needs to know about DataProvider.
type prefetchTask[K Key, V any] struct {
	key      K
	pending  *pendingLoad[K, V]
	loadFunc func(chan prefetchResult[K, V])
}

// prefetchResult carries a completed speculative load back to mainLoop,
// which alone is allowed to mutate resident/inflight state.
type prefetchResult[K Key, V any] struct {
	key     K
	pending *pendingLoad[K, V]
	value   V
	err     error
}

// prefetchPool bounds concurrent speculative loads to
// cfg.PrefetchWorkers using ants, the way the corpus uses it for bounded
// worker fan-out rather than an unbounded goroutine-per-task.
type prefetchPool[K Key, V any] struct {
	pool *ants.PoolWithFunc
}

func newPrefetchPool[K Key, V any](size int, resultCh chan prefetchResult[K, V]) (*prefetchPool[K, V], error) {
	p, err := ants.NewPoolWithFunc(size, func(arg interface{}) {
		task := arg.(prefetchTask[K, V])
		task.loadFunc(resultCh)
	}, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &prefetchPool[K, V]{pool: p}, nil
}

// submit hands key off to the pool for a speculative load.
func (pp *prefetchPool[K, V]) submit(task prefetchTask[K, V]) error {
	return pp.pool.Invoke(task)
}

func (pp *prefetchPool[K, V]) release() {
	pp.pool.Release()
}

// mainLoop is the single background coordinator (spec §4.7): it alone
// issues prefetches and commits their results (with any eviction those
// commits trigger; synchronous loads are committed by Get itself),
// mirroring the single-writer mainLoop found in core/state/trie_prefetcher.go
// and eth/feemarket/cache.go.
func (c *Cache[K, V]) mainLoop() {
	defer c.workerWG.Done()
	for {
		select {
		case <-c.notifyCh:
			c.reconcileNow()
		case res := <-c.resultCh:
			c.handlePrefetchResult(res)
		case <-c.closeCh:
			c.drainGraceWindow()
			return
		}
	}
}

// drainGraceWindow keeps committing legitimate prefetch completions for
// up to ShutdownGracePeriod after Close is requested (spec §4.9's
// "bounded grace period"), then abandons whatever is still outstanding;
// Close force-completes those with ErrClosed once this returns.
func (c *Cache[K, V]) drainGraceWindow() {
	if c.cfg.ShutdownGracePeriod <= 0 {
		c.drainResults()
		return
	}
	timer := time.NewTimer(c.cfg.ShutdownGracePeriod)
	defer timer.Stop()
	for {
		select {
		case res := <-c.resultCh:
			c.handlePrefetchResult(res)
		case <-timer.C:
			c.drainResults()
			return
		}
	}
}

// drainResults discards any prefetch results still buffered once the
// grace window has elapsed; their values are never committed.
func (c *Cache[K, V]) drainResults() {
	for {
		select {
		case <-c.resultCh:
		default:
			return
		}
	}
}

// reconcileNow runs one scheduling pass: derive the desired prefetch set,
// diff it against the current speculative in-flight set, cancel what is
// no longer wanted, and issue what is newly wanted, up to
// max_keys_prefetched (spec §4.5).
func (c *Cache[K, V]) reconcileNow() {
	if c.pool == nil || c.predictor == nil {
		return
	}

	c.mu.Lock()
	if !c.hasCurrent {
		c.mu.Unlock()
		return
	}
	current := c.current
	hist := c.history.snapshot()
	prefetchKeys := c.speculativeInflightKeysLocked()
	c.mu.Unlock()

	isResident := func(k K) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.resident.has(k)
	}

	desired, err := c.predictor.derive(context.Background(), current, hist, isResident, c.cfg.MaxKeysPrefetched)
	if err != nil {
		c.metrics.markPredictorError()
		c.events.publish(Event[K]{Kind: EventWorkerError, Err: &PredictorError{Err: err}})
		log.Debug("prefetchcache: predictor failed, skipping reconciliation pass", "err", err)
		return
	}

	plan := reconcile(prefetchKeys, desired, c.cfg.MaxKeysPrefetched)

	if len(plan.cancel) > 0 {
		cancelled := 0
		c.mu.Lock()
		for _, k := range plan.cancel {
			if p, ok := c.inflight.get(k); ok && p.kind == loadKindPrefetch {
				p.markCancelled()
				c.inflight.remove(k, p)
				cancelled++
			}
		}
		c.counters.PrefetchCancelled += uint64(cancelled)
		c.mu.Unlock()
		c.metrics.markPrefetchCancelled(cancelled)
	}

	for _, k := range plan.issue {
		c.issuePrefetch(k)
	}
}

// speculativeInflightKeysLocked returns the keys currently undergoing a
// speculative (not synchronous) load. Caller holds c.mu.
func (c *Cache[K, V]) speculativeInflightKeysLocked() []K {
	out := make([]K, 0, c.inflight.len())
	for _, k := range c.inflight.keys() {
		if p, ok := c.inflight.get(k); ok && p.kind == loadKindPrefetch {
			out = append(out, k)
		}
	}
	return out
}

// issuePrefetch reserves key's in-flight slot and hands it to the pool.
func (c *Cache[K, V]) issuePrefetch(key K) {
	c.mu.Lock()
	if c.resident.has(key) {
		c.mu.Unlock()
		return
	}
	if _, already := c.inflight.get(key); already {
		c.mu.Unlock()
		return
	}
	p := c.inflight.start(key, loadKindPrefetch)
	c.counters.PrefetchIssued++
	c.mu.Unlock()

	c.metrics.markPrefetchIssued(1)
	c.events.publish(Event[K]{Kind: EventPrefetchStart, Key: key})

	task := prefetchTask[K, V]{key: key, pending: p}
	task.loadFunc = func(resultCh chan prefetchResult[K, V]) {
		v, err := c.cfg.Provider.Load(context.Background(), key)
		select {
		case resultCh <- prefetchResult[K, V]{key: key, pending: p, value: v, err: err}:
		case <-c.closeCh:
		}
	}

	if err := c.pool.submit(task); err != nil {
		c.mu.Lock()
		c.inflight.remove(key, p)
		c.counters.PrefetchErrors++
		c.mu.Unlock()
		p.complete(*new(V), err)
		c.metrics.markPrefetchError()
		c.events.publish(Event[K]{Kind: EventPrefetchError, Key: key, Err: err})
	}
}

// handlePrefetchResult commits or discards a completed speculative load,
// then immediately re-derives D and runs another scheduling pass so a
// freed prefetch slot is refilled right away rather than waiting for the
// next client access (spec §4.6: all four steps run on every
// notification, not only on access). Only mainLoop calls this, so it
// never races commitLocked with a concurrent reconciliation pass.
func (c *Cache[K, V]) handlePrefetchResult(res prefetchResult[K, V]) {
	res.pending.complete(res.value, res.err)

	c.mu.Lock()
	c.inflight.remove(res.key, res.pending)
	cancelled := res.pending.isCancelled()
	if !cancelled {
		c.counters.PrefetchCompleted++
		if res.err == nil {
			c.commitLocked(res.key, res.value)
		} else {
			c.counters.PrefetchErrors++
		}
	}
	c.mu.Unlock()

	if cancelled {
		return
	}
	if res.err != nil {
		c.metrics.markPrefetchError()
		c.events.publish(Event[K]{Kind: EventPrefetchError, Key: res.key, Err: res.err})
		log.Debug("prefetchcache: prefetch failed", "key", res.key, "err", res.err)
	} else {
		c.metrics.markPrefetchSuccess()
		c.events.publish(Event[K]{Kind: EventPrefetchSuccess, Key: res.key})
	}

	if !c.closed.Load() {
		c.reconcileNow()
	}
}
