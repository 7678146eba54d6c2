package cache

import (
	"fmt"

	"github.com/ethereum/go-ethereum/metrics"
)

// cacheMetrics is purely ambient telemetry (SPEC_FULL.md §2): one named
// go-ethereum Meter per countable outcome, mirroring the metrics.Meter
// field group on triePrefetcher. metrics.NewRegisteredMeter already
// returns a NilMeter when metrics.Enabled is false, so call sites never
// need their own Enabled guard (trie_prefetcher.go only guards the
// aggregate report() pass, not individual Mark calls). These meters are
// a reporting surface only; the authoritative counters the functional
// Stats contract promises live in counters.go.
type cacheMetrics struct {
	hitMeter             metrics.Meter
	missMeter            metrics.Meter
	loadErrorMeter       metrics.Meter
	prefetchIssuedMeter  metrics.Meter
	prefetchSuccessMeter metrics.Meter
	prefetchErrorMeter   metrics.Meter
	prefetchCancelMeter  metrics.Meter
	evictionMeter        metrics.Meter
	predictorErrorMeter  metrics.Meter
}

func newCacheMetrics(namespace string) *cacheMetrics {
	if namespace == "" {
		namespace = "prefetchcache"
	}
	name := func(suffix string) string { return fmt.Sprintf("%s/%s", namespace, suffix) }
	return &cacheMetrics{
		hitMeter:             metrics.NewRegisteredMeter(name("hit"), nil),
		missMeter:            metrics.NewRegisteredMeter(name("miss"), nil),
		loadErrorMeter:       metrics.NewRegisteredMeter(name("load_error"), nil),
		prefetchIssuedMeter:  metrics.NewRegisteredMeter(name("prefetch_issued"), nil),
		prefetchSuccessMeter: metrics.NewRegisteredMeter(name("prefetch_success"), nil),
		prefetchErrorMeter:   metrics.NewRegisteredMeter(name("prefetch_error"), nil),
		prefetchCancelMeter:  metrics.NewRegisteredMeter(name("prefetch_cancelled"), nil),
		evictionMeter:        metrics.NewRegisteredMeter(name("eviction"), nil),
		predictorErrorMeter:  metrics.NewRegisteredMeter(name("predictor_error"), nil),
	}
}

func (m *cacheMetrics) markHit()                    { m.hitMeter.Mark(1) }
func (m *cacheMetrics) markMiss()                   { m.missMeter.Mark(1) }
func (m *cacheMetrics) markLoadError()              { m.loadErrorMeter.Mark(1) }
func (m *cacheMetrics) markPrefetchIssued(n int)     { m.prefetchIssuedMeter.Mark(int64(n)) }
func (m *cacheMetrics) markPrefetchSuccess()        { m.prefetchSuccessMeter.Mark(1) }
func (m *cacheMetrics) markPrefetchError()          { m.prefetchErrorMeter.Mark(1) }
func (m *cacheMetrics) markPrefetchCancelled(n int)  { m.prefetchCancelMeter.Mark(int64(n)) }
func (m *cacheMetrics) markEviction(n int)          { m.evictionMeter.Mark(int64(n)) }
func (m *cacheMetrics) markPredictorError()         { m.predictorErrorMeter.Mark(1) }
