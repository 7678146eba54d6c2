package cache

import "time"

// Config bundles the tunables a Cache is constructed with. Like
// eth/config.NetworkConfigCache, it is a plain struct filled in by the
// caller and then defaulted in place by applyDefaults rather than built
// through functional options.
type Config[K Key, V any] struct {
	// MaxKeysCached is the hard cap on resident entries (spec
	// max_keys_cached). Must be >= 1.
	MaxKeysCached int

	// MaxKeysPrefetched bounds concurrent speculative loads (spec
	// max_keys_prefetched). Zero disables prefetching entirely: every
	// miss falls back to a synchronous load and the worker never issues
	// speculative work.
	MaxKeysPrefetched int

	// HistorySize bounds the access history retained for the predictor
	// (spec history_size H). Zero disables history tracking.
	HistorySize int

	// Provider performs the actual loads. Required.
	Provider DataProvider[K, V]

	// Predictor supplies likelihood scores. May be nil, in which case
	// the worker never schedules speculative prefetches.
	Predictor AccessPredictor[K]

	// PredictionMemoSize bounds the ARC memo in front of Predictor. Zero
	// disables memoization.
	PredictionMemoSize int

	// EvictionPolicy selects victims once MaxKeysCached is exceeded. Nil
	// defaults to oldest-first by insertion sequence.
	EvictionPolicy EvictionPolicy[K, V]

	// PrefetchWorkers bounds the goroutine pool used to execute
	// speculative loads concurrently. Defaults to MaxKeysPrefetched.
	PrefetchWorkers int

	// OnEvent, if set, receives every emitted Event. Invoked outside the
	// cache's critical section.
	OnEvent EventCallback[K]

	// ShutdownGracePeriod bounds how long Close waits for in-flight
	// prefetches to finish before abandoning them. Defaults to 5s;
	// set to a negative value for "no grace period" (Close returns as
	// soon as cancellation has been requested).
	ShutdownGracePeriod time.Duration
}

const defaultShutdownGracePeriod = 5 * time.Second

func (c *Config[K, V]) applyDefaults() {
	if c.MaxKeysCached <= 0 {
		c.MaxKeysCached = 1
	}
	if c.MaxKeysPrefetched < 0 {
		c.MaxKeysPrefetched = 0
	}
	if c.HistorySize < 0 {
		c.HistorySize = 0
	}
	if c.PrefetchWorkers <= 0 {
		c.PrefetchWorkers = c.MaxKeysPrefetched
	}
	if c.EvictionPolicy == nil {
		c.EvictionPolicy = oldestFirstPolicy[K, V]{}
	}
	if c.ShutdownGracePeriod == 0 {
		c.ShutdownGracePeriod = defaultShutdownGracePeriod
	}
}
