package cache

// Counters is the plain, always-on data model spec.md §3/§4.8 mandates:
// every field is incremented unconditionally (never gated behind the
// optional go-ethereum metrics.Enabled ambient telemetry in metrics.go),
// so Stats() can be used to verify testable properties like "hits +
// misses == number of completed get() calls" without any metrics
// backend wired up.
type Counters struct {
	Hits                uint64
	Misses              uint64
	PrefetchIssued      uint64
	PrefetchCompleted   uint64
	PrefetchCancelled   uint64
	PrefetchErrors      uint64
	Evictions           uint64
	ActivePrefetchTasks int
}

// snapshotCountersLocked copies the live counters plus the current
// active-prefetch-task gauge. Caller holds c.mu.
func (c *Cache[K, V]) snapshotCountersLocked() Counters {
	snap := c.counters
	snap.ActivePrefetchTasks = c.inflight.countByKind(loadKindPrefetch)
	return snap
}
