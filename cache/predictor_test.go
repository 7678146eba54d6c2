package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPredictionDriverOrdersByScoreThenDistanceThenKey(t *testing.T) {
	predictor := staticPredictor{scores: map[int]float64{
		10: 0.5,
		11: 0.5, // tie with 10 on score; 11 is closer to current=12
		20: 0.9,
		5:  0.9, // tie with 20 on score; 5 is closer to current=12
	}}
	driver := newPredictionDriver[int, string](predictor, 0)

	isResident := func(int) bool { return false }
	got, err := driver.derive(context.Background(), 12, nil, isResident, 10)
	require.NoError(t, err)

	// score 0.9 first (5 and 20 tie on score; distance to 12 is 7 vs 8,
	// so 5 sorts before 20), then score 0.5 (11 closer than 10).
	require.Equal(t, []int{5, 20, 11, 10}, got)
}

func TestPredictionDriverFiltersResidentAndCaps(t *testing.T) {
	predictor := staticPredictor{scores: map[int]float64{
		1: 1.0,
		2: 0.9,
		3: 0.8,
	}}
	driver := newPredictionDriver[int, string](predictor, 0)

	isResident := func(k int) bool { return k == 1 }
	got, err := driver.derive(context.Background(), 0, nil, isResident, 1)
	require.NoError(t, err)
	require.Equal(t, []int{2}, got)
}

func TestPredictionDriverZeroBudgetYieldsNothing(t *testing.T) {
	predictor := staticPredictor{scores: map[int]float64{1: 1.0}}
	driver := newPredictionDriver[int, string](predictor, 0)

	got, err := driver.derive(context.Background(), 0, nil, func(int) bool { return false }, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPredictionDriverPropagatesPredictorError(t *testing.T) {
	predictor := failingPredictor{err: context.DeadlineExceeded}
	driver := newPredictionDriver[int, string](predictor, 0)

	_, err := driver.derive(context.Background(), 0, nil, func(int) bool { return false }, 5)
	require.Error(t, err)
}

func TestPredictionDriverMemoizesIdenticalQueries(t *testing.T) {
	calls := 0
	predictor := countingPredictor{fn: func() map[int]float64 {
		calls++
		return map[int]float64{1: 1.0}
	}}
	driver := newPredictionDriver[int, string](predictor, 8)

	isResident := func(int) bool { return false }
	_, err := driver.derive(context.Background(), 0, []int{9}, isResident, 5)
	require.NoError(t, err)
	_, err = driver.derive(context.Background(), 0, []int{9}, isResident, 5)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}

type countingPredictor struct {
	fn func() map[int]float64
}

func (c countingPredictor) Likelihoods(ctx context.Context, current int, history []int) (map[int]float64, error) {
	return c.fn(), nil
}
