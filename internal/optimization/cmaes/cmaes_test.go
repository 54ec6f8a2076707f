package cmaes

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/functions"
)

func minimize(t *testing.T, s *Strategy, f optimization.ObjectiveFunction, maxGenerations int) float64 {
	t.Helper()
	best := math.Inf(1)
	for g := 0; g < maxGenerations && !s.ShouldStop(); g++ {
		pop, err := s.Ask(s.PopulationSize())
		require.NoError(t, err)
		for i := range pop {
			pop[i], err = optimization.EvaluatePoint(f, pop[i])
			require.NoError(t, err)
			best = math.Min(best, pop[i].Y)
		}
		require.NoError(t, s.Tell(pop))
	}
	return best
}

func TestStrategyConvergesOnSphere(t *testing.T) {
	for _, dim := range []int{2, 5} {
		s, err := New(Config{Mean: fill(dim, 3), Sigma: 1, Seed: 42})
		require.NoError(t, err)

		best := minimize(t, s, functions.NewSphere(dim), 1000)
		assert.Less(t, best, 1e-8, "dim %d", dim)
		assert.Greater(t, s.Generation(), 0)
		assert.Equal(t, s.Generation()*s.PopulationSize(), s.Evaluations())
	}
}

func TestStrategyConvergesOnRosenbrock(t *testing.T) {
	s, err := New(Config{Mean: []float64{-1, 2}, Sigma: 0.5, Seed: 7})
	require.NoError(t, err)

	best := minimize(t, s, functions.NewRosenbrock(2), 2000)
	assert.Less(t, best, 1e-4)
}

func TestDefaults(t *testing.T) {
	s, err := New(Config{Mean: fill(10, 0), Sigma: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 10, s.PopulationSize())
	assert.Equal(t, 5, s.Mu())
	assert.Equal(t, 6, DefaultPopulationSize(2))
	assert.InDelta(t, 1.0, sumOf(s.weights), 1e-12)
	assert.Greater(t, s.weights[0], s.weights[len(s.weights)-1])

	c := s.Covariance()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.Equal(t, want, c.At(i, j))
		}
	}
	c.SetSym(0, 0, 42)
	assert.Equal(t, 1.0, s.Covariance().At(0, 0), "Covariance returns a copy")
}

func TestAskRespectsBounds(t *testing.T) {
	bounds := optimization.Bounds{Lower: -1, Upper: 1}
	s, err := New(Config{Mean: []float64{0.9, -0.9, 0}, Sigma: 5, Bounds: &bounds, Seed: 1})
	require.NoError(t, err)

	pop, err := s.Ask(50)
	require.NoError(t, err)
	require.Len(t, pop, 50)
	for _, p := range pop {
		assert.True(t, bounds.Contains(p))
		assert.False(t, p.HasY)
	}
}

func TestAskDeterministic(t *testing.T) {
	a, _ := New(Config{Mean: []float64{0, 0}, Sigma: 1, Seed: 9})
	b, _ := New(Config{Mean: []float64{0, 0}, Sigma: 1, Seed: 9})
	pa, err := a.Ask(6)
	require.NoError(t, err)
	pb, err := b.Ask(6)
	require.NoError(t, err)
	assert.Equal(t, pa.Xs(), pb.Xs())
}

func TestTellValidation(t *testing.T) {
	s, err := New(Config{Mean: []float64{0, 0}, Sigma: 1, PopulationSize: 6})
	require.NoError(t, err)

	_, err = s.Ask(2)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

	pop, err := s.Ask(6)
	require.NoError(t, err)
	err = s.Tell(pop)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument), "points need values")

	err = s.Tell(optimization.PointList{optimization.EvaluatedPoint([]float64{0, 0}, 1)})
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument), "fewer than mu points")

	bad := optimization.PointList{
		optimization.EvaluatedPoint([]float64{0, 0}, 1),
		optimization.EvaluatedPoint([]float64{0, 0, 0}, 1),
		optimization.EvaluatedPoint([]float64{0, 0}, 1),
	}
	assert.True(t, errors.Is(s.Tell(bad), optimization.ErrDimensionMismatch))
	assert.Equal(t, 0, s.Generation())
}

func TestTellAcceptsSubset(t *testing.T) {
	s, err := New(Config{Mean: []float64{1, 1}, Sigma: 1, PopulationSize: 6})
	require.NoError(t, err)

	pop, err := s.Ask(6)
	require.NoError(t, err)
	f := functions.NewSphere(2)
	for i := range pop {
		pop[i], err = optimization.EvaluatePoint(f, pop[i])
		require.NoError(t, err)
	}
	require.NoError(t, s.Tell(pop.Rank(false)[:3]))
	assert.Equal(t, 1, s.Generation())
	assert.Equal(t, 3, s.Evaluations())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty mean", cfg: Config{Sigma: 1}},
		{name: "zero sigma", cfg: Config{Mean: []float64{0}, Sigma: 0}},
		{name: "tiny population", cfg: Config{Mean: []float64{0}, Sigma: 1, PopulationSize: 1}},
		{name: "bad mode", cfg: Config{Mean: []float64{0}, Sigma: 1, BoundsMode: "bounce"}},
		{name: "bad bounds", cfg: Config{Mean: []float64{0}, Sigma: 1, Bounds: &optimization.Bounds{Lower: 1, Upper: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
		})
	}
}

func TestShouldStopOnCollapse(t *testing.T) {
	s, err := New(Config{Mean: []float64{0, 0}, Sigma: 1})
	require.NoError(t, err)
	assert.False(t, s.ShouldStop())

	s.sigma = 1e-13
	assert.True(t, s.ShouldStop())

	s.sigma = math.NaN()
	assert.True(t, s.ShouldStop())
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func sumOf(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
