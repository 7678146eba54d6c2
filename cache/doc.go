// Package cache implements a predictive prefetching cache: a keyed,
// in-memory store that asynchronously pre-loads items it anticipates will
// be requested next, using a pluggable likelihood oracle, while enforcing
// a strict upper bound on resident entries.
package cache
