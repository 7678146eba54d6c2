package cache

import "golang.org/x/exp/constraints"

// Key is the constraint the core places on cache keys: equality and
// hashing come for free from comparable, and ordering/arithmetic (needed
// only by the Prediction Driver's distance tie-break, spec §4.4) come
// from constraints.Integer. Callers with non-integer key spaces can still
// project their identifiers onto an integer domain before calling in.
type Key interface {
	constraints.Integer
}

// Entry is a resident record. InsertionSequence defines "oldest": it is
// assigned once, strictly increasing in issue order, at the moment a
// value becomes resident.
type Entry[K Key, V any] struct {
	Key               K
	Value             V
	InsertionSequence uint64
}

// EvictionPolicy selects victims to shed from a resident snapshot. The
// snapshot is oldest-first already (by InsertionSequence); policies that
// need a different ranking are free to re-sort it.
type EvictionPolicy[K Key, V any] interface {
	SelectVictims(resident []Entry[K, V], shed int) []K
}
