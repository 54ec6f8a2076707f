package metamodel

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/functions"
	"github.com/copyleftdev/optilab/internal/optimization/surrogate"
)

// line is f(x) = x0 in one dimension.
type line struct{ calls int }

func (f *line) Name() string { return "line" }
func (f *line) Dim() int     { return 1 }
func (f *line) Evaluate(x []float64) (float64, error) {
	if len(x) != 1 {
		return 0, optimization.DimensionMismatch(1, len(x))
	}
	f.calls++
	return x[0], nil
}

// flat is f(x) = 100 in one dimension.
type flat struct{ calls int }

func (f *flat) Name() string { return "flat" }
func (f *flat) Dim() int     { return 1 }
func (f *flat) Evaluate(x []float64) (float64, error) {
	if len(x) != 1 {
		return 0, optimization.DimensionMismatch(1, len(x))
	}
	f.calls++
	return 100, nil
}

// spySurrogate records its usage and predicts with a caller-supplied rule.
type spySurrogate struct {
	estimate  func(x []float64, trainSize int) float64
	minTrain  int
	trainSize int
	trains    int
	calls     int
}

func (s *spySurrogate) Name() string { return "spy" }
func (s *spySurrogate) Train(train optimization.PointList) error {
	s.trainSize = len(train)
	s.trains++
	return nil
}
func (s *spySurrogate) Predict(p optimization.Point) (optimization.Point, error) {
	if s.trains == 0 {
		return optimization.Point{}, optimization.NewError(optimization.ErrNotReady, "untrained")
	}
	s.calls++
	return optimization.EstimatedPoint(p.X, s.estimate(p.X, s.trainSize)), nil
}
func (s *spySurrogate) Ready() bool                     { return s.trains > 0 }
func (s *spySurrogate) Calls() int                      { return s.calls }
func (s *spySurrogate) MinTrainSize(int) int            { return s.minTrain }
func (s *spySurrogate) Hyperparameters() map[string]any { return map[string]any{} }

func identityEstimate(x []float64, _ int) float64 { return x[0] }

// flipEstimate reverses the predicted ranking every time the training set
// grows by one, so the elite set never settles.
func flipEstimate(x []float64, trainSize int) float64 {
	if trainSize%2 == 0 {
		return -x[0]
	}
	return x[0]
}

func population(n int) optimization.PointList {
	list := make(optimization.PointList, n)
	for i := range list {
		list[i] = optimization.NewPoint([]float64{float64(i)})
	}
	return list
}

func TestBootstrapNeverPredicts(t *testing.T) {
	f := &line{}
	spy := &spySurrogate{estimate: identityEstimate, minTrain: 1}
	m, err := New(4, 2, f, spy)
	require.NoError(t, err)
	assert.Equal(t, 4, m.BootstrapSize())

	out, err := m.EvaluateGeneration(population(4))
	require.NoError(t, err)
	require.Len(t, out, 4)
	for i, p := range out {
		assert.True(t, p.IsEvaluated)
		assert.Equal(t, float64(i), p.Y)
	}
	assert.Equal(t, 0, spy.calls)
	assert.Equal(t, 0, spy.trains)
	assert.Equal(t, 4, f.calls)

	_, err = m.EvaluateGeneration(population(4))
	require.NoError(t, err)
	assert.Greater(t, spy.trains, 0, "steady state uses the surrogate")
}

func TestBootstrapHonorsSurrogateMinimum(t *testing.T) {
	spy := &spySurrogate{estimate: identityEstimate, minTrain: 6}
	m, err := New(4, 2, &line{}, spy)
	require.NoError(t, err)
	assert.Equal(t, 6, m.BootstrapSize())

	for i := 0; i < 2; i++ {
		_, err := m.EvaluateGeneration(population(4))
		require.NoError(t, err)
	}
	assert.Equal(t, 8, m.Evaluations())
	assert.Equal(t, 0, spy.calls)

	_, err = m.EvaluateGeneration(population(4))
	require.NoError(t, err)
	assert.Greater(t, spy.calls, 0)
}

func TestThresholdDecreasesWhenStable(t *testing.T) {
	f := &line{}
	spy := &spySurrogate{estimate: identityEstimate, minTrain: 1}
	var stats []GenerationStats
	m, err := New(10, 2, f, spy,
		WithThresholds(2, 1),
		WithObserver(ObserverFunc(func(s GenerationStats) { stats = append(stats, s) })))
	require.NoError(t, err)

	_, err = m.EvaluateGeneration(population(10))
	require.NoError(t, err)
	assert.Equal(t, 10, m.Evaluations())
	assert.Equal(t, 2, m.NInit(), "bootstrap leaves thresholds alone")

	out, err := m.EvaluateGeneration(population(10))
	require.NoError(t, err)
	assert.Equal(t, 1, m.NInit())
	assert.Equal(t, 12, m.Evaluations())

	require.Len(t, out, 10)
	for i, p := range out {
		assert.Equal(t, []float64{float64(i)}, p.X, "ReturnAll keeps input order")
		assert.Equal(t, i < 2, p.IsEvaluated)
		assert.True(t, p.HasY)
	}

	require.Len(t, stats, 2)
	assert.True(t, stats[0].Bootstrap)
	assert.False(t, stats[1].Bootstrap)
	assert.Equal(t, 1, stats[1].Rounds)
	assert.True(t, stats[1].Stable)
	assert.Equal(t, 2, stats[1].RealEvaluations)
	assert.Equal(t, 18, stats[1].Predictions, "10 up front, then 8 unevaluated")
	assert.Equal(t, 1, stats[1].NInit)
	assert.Equal(t, 12, stats[1].TrainSetSize)
	assert.Equal(t, 0.0, stats[1].BestY)

	_, err = m.EvaluateGeneration(population(10))
	require.NoError(t, err)
	assert.Equal(t, 1, m.NInit(), "n_init is floored at n_step")
}

func TestThresholdIncreasesWhenUnstable(t *testing.T) {
	f := &flat{}
	spy := &spySurrogate{estimate: flipEstimate, minTrain: 1}
	var last GenerationStats
	m, err := New(10, 2, f, spy,
		WithThresholds(2, 1),
		WithObserver(ObserverFunc(func(s GenerationStats) { last = s })))
	require.NoError(t, err)

	_, err = m.EvaluateGeneration(population(10))
	require.NoError(t, err)
	f.calls = 0

	_, err = m.EvaluateGeneration(population(10))
	require.NoError(t, err)

	assert.Equal(t, 3, m.NInit())
	assert.Equal(t, 8, last.Rounds)
	assert.False(t, last.Stable)
	assert.Equal(t, 10, last.RealEvaluations)
	assert.Equal(t, 10, f.calls, "no candidate is evaluated twice in one generation")
}

func TestThresholdCappedAtInputSizeMinusStep(t *testing.T) {
	f := &flat{}
	spy := &spySurrogate{estimate: flipEstimate, minTrain: 1}
	m, err := New(10, 2, f, spy, WithThresholds(2, 1))
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		_, err := m.EvaluateGeneration(population(10))
		require.NoError(t, err)
		assert.LessOrEqual(t, m.NInit(), 9)
		assert.GreaterOrEqual(t, m.NInit(), 1)
	}
}

func TestInvalidInputDoesNotMutate(t *testing.T) {
	spy := &spySurrogate{estimate: identityEstimate, minTrain: 1}
	m, err := New(4, 2, &line{}, spy)
	require.NoError(t, err)
	_, err = m.EvaluateGeneration(population(4))
	require.NoError(t, err)

	before := m.TrainSet()
	nInit := m.NInit()

	tests := []struct {
		name       string
		candidates optimization.PointList
		kind       error
	}{
		{name: "too few", candidates: population(3), kind: optimization.ErrInvalidArgument},
		{name: "too many", candidates: population(5), kind: optimization.ErrInvalidArgument},
		{
			name: "already evaluated",
			candidates: optimization.PointList{
				optimization.NewPoint([]float64{0}),
				optimization.EvaluatedPoint([]float64{1}, 1),
				optimization.NewPoint([]float64{2}),
				optimization.NewPoint([]float64{3}),
			},
			kind: optimization.ErrInvalidArgument,
		},
		{
			name: "wrong dimension",
			candidates: optimization.PointList{
				optimization.NewPoint([]float64{0}),
				optimization.NewPoint([]float64{1, 1}),
				optimization.NewPoint([]float64{2}),
				optimization.NewPoint([]float64{3}),
			},
			kind: optimization.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.EvaluateGeneration(tt.candidates)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Equal(t, before, m.TrainSet())
			assert.Equal(t, nInit, m.NInit())
			assert.Equal(t, 1, m.Generation())
		})
	}
}

func TestTrainSetMonotonic(t *testing.T) {
	f := functions.NewCounting(functions.NewSphere(2))
	knn, err := surrogate.NewKNN(3)
	require.NoError(t, err)
	m, err := New(6, 3, f, knn)
	require.NoError(t, err)

	bounds := optimization.Bounds{Lower: -5, Upper: 5}
	rng := rand.New(rand.NewPCG(11, 12))

	prev := optimization.PointList{}
	for g := 0; g < 8; g++ {
		out, err := m.EvaluateGeneration(bounds.RandomPointList(6, 2, rng))
		require.NoError(t, err)
		require.Len(t, out, 6)

		current := m.TrainSet()
		require.GreaterOrEqual(t, current.Len(), prev.Len())
		assert.Equal(t, prev.Xs(), current[:prev.Len()].Xs(), "earlier points are never dropped")
		prev = current

		for _, p := range out {
			if p.IsEvaluated {
				assert.True(t, current.Contains(p))
			}
		}
	}

	assert.Equal(t, m.Log(), m.TrainSet())
	assert.Equal(t, f.Calls(), m.Evaluations())
	assert.Equal(t, m.Log().BestY(), m.BestY())
}

func TestReturnModes(t *testing.T) {
	run := func(mode ReturnMode) optimization.PointList {
		spy := &spySurrogate{estimate: identityEstimate, minTrain: 1}
		m, err := New(10, 2, &line{}, spy, WithThresholds(2, 1), WithReturnMode(mode))
		require.NoError(t, err)
		_, err = m.EvaluateGeneration(population(10))
		require.NoError(t, err)
		out, err := m.EvaluateGeneration(population(10))
		require.NoError(t, err)
		return out
	}

	elite := run(ReturnElite)
	require.Len(t, elite, 2)
	assert.Equal(t, []float64{0, 1}, elite.Ys())

	evaluated := run(ReturnEvaluated)
	require.Len(t, evaluated, 2)
	for _, p := range evaluated {
		assert.True(t, p.IsEvaluated)
	}

	assert.Len(t, run(ReturnAll), 10)
	assert.Equal(t, "elite", ReturnElite.String())
}

func TestUpdateCovariance(t *testing.T) {
	lw, err := surrogate.NewLocallyWeighted(2, 5, nil)
	require.NoError(t, err)
	m, err := New(6, 3, functions.NewSphere(2), lw)
	require.NoError(t, err)

	require.NoError(t, m.UpdateCovariance(mat.NewSymDense(2, []float64{2, 0, 0, 1})))
	err = m.UpdateCovariance(mat.NewSymDense(2, []float64{-1, 0, 0, 1}))
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

	knn, err := surrogate.NewKNN(2)
	require.NoError(t, err)
	m, err = New(6, 3, functions.NewSphere(2), knn)
	require.NoError(t, err)
	assert.NoError(t, m.UpdateCovariance(mat.NewSymDense(2, []float64{-1, 0, 0, 1})), "ignored without a metric")
}

func TestNewValidation(t *testing.T) {
	spy := &spySurrogate{estimate: identityEstimate}

	_, err := New(0, 0, &line{}, spy)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
	_, err = New(4, 5, &line{}, spy)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
	_, err = New(4, 2, nil, spy)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
	_, err = New(4, 2, &line{}, spy, WithThresholds(0, 1))
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

	m, err := New(25, 12, &line{}, spy)
	require.NoError(t, err)
	assert.Equal(t, 25, m.NInit())
	assert.Equal(t, 2, m.NStep())
	assert.Equal(t, 25, m.InputSize())
	assert.Equal(t, 12, m.Popsize())
}

func TestSameElite(t *testing.T) {
	a := optimization.PointList{
		optimization.EstimatedPoint([]float64{1}, 3),
		optimization.EstimatedPoint([]float64{2}, 4),
	}
	b := optimization.PointList{
		optimization.EvaluatedPoint([]float64{2}, 0),
		optimization.EvaluatedPoint([]float64{1}, 9),
	}
	assert.True(t, sameElite(a, b), "membership by coordinates, order ignored")
	assert.False(t, sameElite(a, b[:1]))
	assert.False(t, sameElite(a, optimization.PointList{a[0], optimization.NewPoint([]float64{3})}))
}
