package functions

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/optilab/internal/optimization"
)

func TestBenchmarkValues(t *testing.T) {
	tests := []struct {
		name     string
		f        optimization.ObjectiveFunction
		x        []float64
		expected float64
	}{
		{name: "sphere origin", f: NewSphere(3), x: []float64{0, 0, 0}, expected: 0},
		{name: "sphere", f: NewSphere(3), x: []float64{1, 2, 3}, expected: 14},
		{name: "rastrigin origin", f: NewRastrigin(2), x: []float64{0, 0}, expected: 0},
		{name: "rastrigin integer", f: NewRastrigin(2), x: []float64{1, 2}, expected: 5},
		{name: "rosenbrock minimum", f: NewRosenbrock(4), x: []float64{1, 1, 1, 1}, expected: 0},
		{name: "rosenbrock origin", f: NewRosenbrock(3), x: []float64{0, 0, 0}, expected: 2},
		{name: "ackley origin", f: NewAckley(5), x: make([]float64, 5), expected: 0},
		{name: "bent cigar", f: NewBentCigar(3), x: []float64{2, 1, 1}, expected: 4 + 2e6},
		{name: "cumulative squared sums", f: NewCumulativeSquaredSums(3), x: []float64{1, 2, 3}, expected: 1 + 9 + 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, err := tt.f.Evaluate(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, y, 1e-9)
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			f, err := ByName(name, 3)
			require.NoError(t, err)
			assert.Equal(t, 3, f.Dim())

			_, err = f.Evaluate([]float64{1, 2})
			assert.True(t, errors.Is(err, optimization.ErrDimensionMismatch))
		})
	}
}

func TestByName(t *testing.T) {
	f, err := ByName("Sphere", 2)
	require.NoError(t, err)
	assert.Equal(t, "sphere", f.Name())
	assert.Equal(t, "sphere(2)", String(f))

	_, err = ByName("griewank", 2)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))

	_, err = ByName("sphere", 0)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
}

func TestCounting(t *testing.T) {
	f := NewCounting(NewSphere(2))
	for i := 0; i < 5; i++ {
		_, err := f.Evaluate([]float64{1, 1})
		require.NoError(t, err)
	}
	_, err := f.Evaluate([]float64{1})
	require.Error(t, err)

	assert.Equal(t, 5, f.Calls(), "failed evaluations are not counted")
	assert.Equal(t, "sphere", f.Name())

	other := NewCounting(NewSphere(2))
	assert.Equal(t, 0, other.Calls(), "counters are per instance")
}

func TestNoisy(t *testing.T) {
	f := NewNoisy(NewSphere(2), 0.1, 42)
	assert.Equal(t, "noisy_sphere_0.1", f.Name())
	assert.Equal(t, 2, f.Dim())

	var values []float64
	for i := 0; i < 50; i++ {
		y, err := f.Evaluate([]float64{1, 1})
		require.NoError(t, err)
		values = append(values, y)
	}
	distinct := false
	for _, v := range values[1:] {
		if v != values[0] {
			distinct = true
		}
	}
	assert.True(t, distinct, "noise must perturb values")

	y, err := f.Evaluate([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, y, "multiplicative noise keeps zero at zero")

	g := NewNoisy(NewSphere(2), 0.1, 42)
	y1, _ := g.Evaluate([]float64{1, 1})
	assert.Equal(t, values[0], y1, "same seed reproduces the same sequence")

	_, err = f.Evaluate([]float64{0})
	assert.True(t, errors.Is(err, optimization.ErrDimensionMismatch))
	assert.False(t, math.IsNaN(values[0]))
}
