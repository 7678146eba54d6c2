package cache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Get after Close has been called.
var ErrClosed = errors.New("prefetchcache: closed")

// errTerminated describes an operation on an in-flight entry that is no
// longer the table's current handle for its key. No code in the package
// returns it: inflightTable.remove ignores such stale handles silently.
var errTerminated = errors.New("prefetchcache: pending load already terminated")

// LoadError wraps a provider failure encountered on a client-driven
// (synchronous) load. Misses are still counted; no entry is created.
type LoadError struct {
	Key any
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("prefetchcache: load failed for key %v: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PredictorError wraps a failure raised by the AccessPredictor. It never
// reaches a client; the worker catches it, emits a worker_error event and
// skips the current reconciliation pass.
type PredictorError struct {
	Err error
}

func (e *PredictorError) Error() string {
	return fmt.Sprintf("prefetchcache: predictor failed: %v", e.Err)
}

func (e *PredictorError) Unwrap() error { return e.Err }

// InvariantViolation reports a broken precondition. New returns one when
// Config.Provider is nil. The worker performs no invariant checks of its
// own, so no InvariantViolation stops the worker or closes the cache.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("prefetchcache: invariant violation: %s", e.Reason)
}
