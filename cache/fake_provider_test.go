package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// fakeProvider is a deterministic, in-memory DataProvider for tests: every
// key in universe is loadable, optionally after an artificial delay or a
// scripted failure, with call counts tracked for assertions.
type fakeProvider struct {
	mu        sync.Mutex
	universe  map[int]string
	delay     chan struct{} // if non-nil, Load blocks here until closed or sent to
	failKeys  map[int]error
	loadCount map[int]int
	loads     int32
}

func newFakeProvider(universe map[int]string) *fakeProvider {
	return &fakeProvider{
		universe:  universe,
		failKeys:  make(map[int]error),
		loadCount: make(map[int]int),
	}
}

func (p *fakeProvider) Load(ctx context.Context, key int) (string, error) {
	atomic.AddInt32(&p.loads, 1)

	p.mu.Lock()
	p.loadCount[key]++
	failErr := p.failKeys[key]
	p.mu.Unlock()

	if p.delay != nil {
		select {
		case <-p.delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if failErr != nil {
		return "", failErr
	}

	p.mu.Lock()
	v, ok := p.universe[key]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown key %d", key)
	}
	return v, nil
}

func (p *fakeProvider) AvailableKeys(ctx context.Context) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]int, 0, len(p.universe))
	for k := range p.universe {
		keys = append(keys, k)
	}
	return keys, nil
}

func (p *fakeProvider) TotalKeys(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.universe), nil
}

func (p *fakeProvider) Stats() map[string]any {
	return map[string]any{"loads": atomic.LoadInt32(&p.loads)}
}

func (p *fakeProvider) setFail(key int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failKeys[key] = err
}

func (p *fakeProvider) callCount(key int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadCount[key]
}

// sequentialPredictor always predicts "current + 1" with a fixed score,
// the perfect-oracle scenario from the scenario table.
type sequentialPredictor struct {
	max int
}

func (s sequentialPredictor) Likelihoods(ctx context.Context, current int, history []int) (map[int]float64, error) {
	next := current + 1
	if next > s.max {
		return nil, nil
	}
	return map[int]float64{next: 1.0}, nil
}

// staticPredictor returns a fixed score map regardless of current/history.
type staticPredictor struct {
	scores map[int]float64
}

func (s staticPredictor) Likelihoods(ctx context.Context, current int, history []int) (map[int]float64, error) {
	out := make(map[int]float64, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out, nil
}

// failingPredictor always errors, for PredictorError handling tests.
type failingPredictor struct {
	err error
}

func (f failingPredictor) Likelihoods(ctx context.Context, current int, history []int) (map[int]float64, error) {
	return nil, f.err
}
