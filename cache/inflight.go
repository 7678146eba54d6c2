package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// loadKind distinguishes why a pendingLoad exists, for accounting and
// event purposes; it does not change how completion is delivered.
type loadKind uint8

const (
	loadKindSync loadKind = iota
	loadKindPrefetch
)

// pendingLoad is the shared completion cell for a single in-flight key:
// every goroutine that discovers the key already loading waits on done
// rather than issuing its own Load. Modeled on the waitCh/Close pairing
// in privyet-client's libkbfs block prefetcher. A synchronous load is
// completed by the Get that performed it; a prefetch is completed by the
// worker when its result arrives; Close completes whatever is left.
type pendingLoad[K Key, V any] struct {
	key       K
	kind      loadKind
	done      chan struct{}
	value     V
	err       error
	cancelled atomic.Bool

	once sync.Once
}

func newPendingLoad[K Key, V any](key K, kind loadKind) *pendingLoad[K, V] {
	return &pendingLoad[K, V]{key: key, kind: kind, done: make(chan struct{})}
}

// complete records the outcome and releases every waiter. Safe to call at
// most meaningfully once; later calls are no-ops.
func (p *pendingLoad[K, V]) complete(value V, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}

// markCancelled flags the load as cancelled by a reconciliation pass. The
// load itself is not interrupted (the provider call already has no
// cancellation hook beyond ctx), but its eventual result will be
// discarded by the worker instead of being committed to residency.
func (p *pendingLoad[K, V]) markCancelled() {
	p.cancelled.Store(true)
}

func (p *pendingLoad[K, V]) isCancelled() bool {
	return p.cancelled.Load()
}

// wait blocks until the load completes or ctx is done.
func (p *pendingLoad[K, V]) wait(ctx context.Context) (V, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// inflightTable tracks every key currently loading, synchronous or
// speculative (spec §4.2). Not safe for concurrent use; callers hold the
// cache lock except where noted.
type inflightTable[K Key, V any] struct {
	byKey map[K]*pendingLoad[K, V]
}

func newInflightTable[K Key, V any]() *inflightTable[K, V] {
	return &inflightTable[K, V]{byKey: make(map[K]*pendingLoad[K, V])}
}

func (t *inflightTable[K, V]) len() int {
	return len(t.byKey)
}

func (t *inflightTable[K, V]) get(key K) (*pendingLoad[K, V], bool) {
	p, ok := t.byKey[key]
	return p, ok
}

func (t *inflightTable[K, V]) start(key K, kind loadKind) *pendingLoad[K, V] {
	p := newPendingLoad[K, V](key, kind)
	t.byKey[key] = p
	return p
}

// remove drops key's entry only if it is still p, guarding against a
// stale remove racing a newer pendingLoad for the same key.
func (t *inflightTable[K, V]) remove(key K, p *pendingLoad[K, V]) {
	if cur, ok := t.byKey[key]; ok && cur == p {
		delete(t.byKey, key)
	}
}

func (t *inflightTable[K, V]) keys() []K {
	out := make([]K, 0, len(t.byKey))
	for k := range t.byKey {
		out = append(out, k)
	}
	return out
}

// countByKind reports how many in-flight entries are of the given kind,
// without allocating a key slice first.
func (t *inflightTable[K, V]) countByKind(kind loadKind) int {
	n := 0
	for _, p := range t.byKey {
		if p.kind == kind {
			n++
		}
	}
	return n
}

// drainAll removes and returns every pending load in the table,
// regardless of kind, leaving the table empty. Used by Close to
// force-complete whatever is still outstanding.
func (t *inflightTable[K, V]) drainAll() []*pendingLoad[K, V] {
	out := make([]*pendingLoad[K, V], 0, len(t.byKey))
	for _, p := range t.byKey {
		out = append(out, p)
	}
	t.byKey = make(map[K]*pendingLoad[K, V])
	return out
}
