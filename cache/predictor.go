package cache

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// AccessPredictor is the external collaborator producing a likelihood
// score per candidate key. It must be a pure, thread-safe function: given
// the same (current, history) it always returns the same scores. An empty
// result means "no speculation".
type AccessPredictor[K Key] interface {
	Likelihoods(ctx context.Context, current K, history []K) (map[K]float64, error)
}

type scoredCandidate[K Key] struct {
	key   K
	score float64
}

// predictionDriver turns a raw likelihood map into the ordered desired
// prefetch set D (spec §4.4): resident keys filtered out, sorted by score
// descending, ties broken by absolute distance to current ascending then
// by key ascending, truncated to maxPrefetch.
//
// An optional ARC memo (hashicorp/golang-lru, the same cache used for
// recentHeaders-style memoization in consensus/satoshi) avoids calling a
// possibly expensive predictor twice for an identical (current, history)
// query in back-to-back reconciliation passes.
type predictionDriver[K Key, V any] struct {
	predictor AccessPredictor[K]
	memo      *lru.ARCCache // optional; nil disables memoization
}

func newPredictionDriver[K Key, V any](predictor AccessPredictor[K], memoSize int) *predictionDriver[K, V] {
	d := &predictionDriver[K, V]{predictor: predictor}
	if memoSize > 0 {
		if c, err := lru.NewARC(memoSize); err == nil {
			d.memo = c
		}
	}
	return d
}

type memoKey[K Key] struct {
	current K
	history string // full history, oldest first, as formatted by fmt
}

func (d *predictionDriver[K, V]) likelihoods(ctx context.Context, current K, history []K) (map[K]float64, error) {
	if d.memo != nil {
		mk := memoKey[K]{current: current, history: fmt.Sprint(history)}
		if cached, ok := d.memo.Get(mk); ok {
			return cached.(map[K]float64), nil
		}
		scores, err := d.predictor.Likelihoods(ctx, current, history)
		if err != nil {
			return nil, err
		}
		d.memo.Add(mk, scores)
		return scores, nil
	}
	return d.predictor.Likelihoods(ctx, current, history)
}

// derive computes D: the ordered, capped desired prefetch set.
func (d *predictionDriver[K, V]) derive(ctx context.Context, current K, history []K, isResident func(K) bool, maxPrefetch int) ([]K, error) {
	if maxPrefetch <= 0 {
		return nil, nil
	}
	scores, err := d.likelihoods(ctx, current, history)
	if err != nil {
		return nil, fmt.Errorf("predictor likelihoods: %w", err)
	}
	if len(scores) == 0 {
		return nil, nil
	}
	candidates := make([]scoredCandidate[K], 0, len(scores))
	for k, s := range scores {
		if isResident(k) {
			continue
		}
		if s < 0 {
			continue
		}
		candidates = append(candidates, scoredCandidate[K]{key: k, score: s})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		di := absDistance(candidates[i].key, current)
		dj := absDistance(candidates[j].key, current)
		if di != dj {
			return di < dj
		}
		return candidates[i].key < candidates[j].key
	})
	if len(candidates) > maxPrefetch {
		candidates = candidates[:maxPrefetch]
	}
	out := make([]K, len(candidates))
	for i, c := range candidates {
		out[i] = c.key
	}
	return out, nil
}

func absDistance[K Key](a, b K) K {
	if a > b {
		return a - b
	}
	return b - a
}
