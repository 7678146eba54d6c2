package cache

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// reconcilePlan is the output of a single scheduling pass (spec §4.5): the
// in-flight prefetches to cancel (present but no longer desired) and the
// desired keys to newly issue (desired but not already in flight), in
// priority order, capped to the remaining prefetch budget.
type reconcilePlan[K Key] struct {
	cancel []K
	issue  []K
}

// reconcile computes I\D (cancel) and D\I (issue, order-preserving,
// capped), where I is the current speculative in-flight set and D is the
// Prediction Driver's ordered desired set. maxPrefetch is
// max_keys_prefetched; cancelled entries are assumed freed immediately,
// so the issue budget accounts for them before counting new work. Uses
// golang-set for the set difference the way miner/worker.go uses
// mapset.Set[common.Hash] for bid-set membership tests.
func reconcile[K Key](inflightKeys []K, desired []K, maxPrefetch int) reconcilePlan[K] {
	inflightSet := mapset.NewThreadUnsafeSet[K](inflightKeys...)
	desiredSet := mapset.NewThreadUnsafeSet[K](desired...)

	plan := reconcilePlan[K]{}
	for _, k := range inflightKeys {
		if !desiredSet.Contains(k) {
			plan.cancel = append(plan.cancel, k)
		}
	}

	surviving := len(inflightKeys) - len(plan.cancel)
	remaining := maxPrefetch - surviving
	for _, k := range desired {
		if remaining <= 0 {
			break
		}
		if inflightSet.Contains(k) {
			continue
		}
		plan.issue = append(plan.issue, k)
		remaining--
	}
	return plan
}
