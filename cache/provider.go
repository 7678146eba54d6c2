package cache

import "context"

// DataProvider is the external collaborator responsible for actually
// fetching a value for a key. load must be thread-safe: it is called
// concurrently by client goroutines (synchronous misses) and by the
// background worker's prefetch pool, without the cache's mutex held.
type DataProvider[K Key, V any] interface {
	// Load blocks until the value for key is available or an error occurs.
	Load(ctx context.Context, key K) (V, error)

	// AvailableKeys enumerates every valid key. Called rarely; need not
	// be O(1).
	AvailableKeys(ctx context.Context) ([]K, error)

	// TotalKeys returns the cardinality of AvailableKeys.
	TotalKeys(ctx context.Context) (int, error)

	// Stats returns free-form diagnostics, passed through untouched.
	Stats() map[string]any
}
