package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/optilab/internal/optimization"
)

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{4, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, s.N)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Std, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 1.5, s.IQR, 1e-12)

	_, err = Summarize(nil)
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
}

func TestMedianIQR(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		median float64
		iqr    float64
	}{
		{"single", []float64{7}, 7, 0},
		{"odd", []float64{5, 1, 3}, 3, 2},
		{"even", []float64{1, 2, 3, 4}, 2.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.median, Median(tt.values), 1e-12)
			assert.InDelta(t, tt.iqr, IQR(tt.values), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(IQR(nil)))
}

func TestConvergenceCurve(t *testing.T) {
	assert.Equal(t, []float64{5, 3, 3, 1, 1}, ConvergenceCurve([]float64{5, 3, 4, 1, 2}))
	assert.Empty(t, ConvergenceCurve(nil))
}

func TestECDF(t *testing.T) {
	data := map[string][][]float64{
		"fast": {{1, 1e-2, 1e-8}},
		"slow": {{1, 1e-1}, {1, 1}},
	}
	curves, err := ECDF(data, 2, 4, 1e-8)
	require.NoError(t, err)

	fast := curves["fast"]
	assert.Equal(t, []float64{0.5, 1, 1.5}, fast.X)
	// thresholds are -6, -4, -2, 0
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 1}, fast.Y, 1e-12)

	slow := curves["slow"]
	assert.Equal(t, []float64{0.5, 1}, slow.X)
	assert.InDeltaSlice(t, []float64{0.25, 0.25}, slow.Y, 1e-12)

	for _, c := range curves {
		for i := 1; i < len(c.Y); i++ {
			assert.GreaterOrEqual(t, c.Y[i], c.Y[i-1])
		}
	}
}

func TestECDFExtendsShortRuns(t *testing.T) {
	curves, err := ECDF(map[string][][]float64{"m": {{1, 1e-8}, {1}}}, 1, 2, 1e-8)
	require.NoError(t, err)
	// thresholds are -4, 0
	assert.InDeltaSlice(t, []float64{0.5, 0.75}, curves["m"].Y, 1e-12)
}

func TestECDFValidation(t *testing.T) {
	valid := map[string][][]float64{"m": {{1}}}
	tests := []struct {
		name         string
		data         map[string][][]float64
		dim, n       int
		allowedError float64
	}{
		{"dim", valid, 0, 10, 1e-8},
		{"thresholds", valid, 1, 0, 1e-8},
		{"allowed error", valid, 1, 10, 0},
		{"no data", nil, 1, 10, 1e-8},
		{"no logs", map[string][][]float64{"m": {}}, 1, 10, 1e-8},
		{"empty log", map[string][][]float64{"m": {{}}}, 1, 10, 1e-8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ECDF(tt.data, tt.dim, tt.n, tt.allowedError)
			assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
		})
	}
}

func TestMannWhitneyU(t *testing.T) {
	t.Run("separated samples", func(t *testing.T) {
		res, err := MannWhitneyU([]float64{1, 2, 3}, []float64{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.U)
		assert.InDelta(t, 0.0404, res.PBetter, 1e-3)
		assert.InDelta(t, 0.9855, res.PWorse, 1e-3)
		assert.Equal(t, res.PBetter, res.PValue(Better))
		assert.Equal(t, res.PWorse, res.PValue(Worse))
	})

	t.Run("symmetric", func(t *testing.T) {
		ab, err := MannWhitneyU([]float64{1, 5, 9}, []float64{2, 3, 10})
		require.NoError(t, err)
		ba, err := MannWhitneyU([]float64{2, 3, 10}, []float64{1, 5, 9})
		require.NoError(t, err)
		assert.InDelta(t, ab.PBetter, ba.PWorse, 1e-12)
		assert.InDelta(t, ab.PWorse, ba.PBetter, 1e-12)
	})

	t.Run("all tied", func(t *testing.T) {
		res, err := MannWhitneyU([]float64{1, 1}, []float64{1, 1})
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.PBetter)
		assert.Equal(t, 1.0, res.PWorse)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := MannWhitneyU(nil, []float64{1})
		assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
	})
}

func TestRank(t *testing.T) {
	ranks, ties := rank([]float64{3, 1, 3, 2})
	assert.Equal(t, []float64{3.5, 1, 3.5, 2}, ranks)
	assert.Equal(t, 6.0, ties)
}

func TestAggregatePValues(t *testing.T) {
	table, err := AggregatePValues([]PValue{
		{Model: "knn-cma-es", Function: "sphere", Alternative: Worse, PValue: 0.9},
		{Model: "knn-cma-es", Function: "sphere", Alternative: Better, PValue: 0.01},
		{Model: "lmm-cma-es", Function: "sphere", Alternative: Better, PValue: 0.2},
		{Model: "lmm-cma-es", Function: "ackley", Alternative: Better, PValue: 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"knn-cma-es", "lmm-cma-es"}, table.Models)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "ackley", table.Rows[0].Function)
	assert.True(t, math.IsNaN(table.Rows[0].Values[0]))
	assert.Equal(t, 0.5, table.Rows[0].Values[1])
	assert.Equal(t, PValueRow{Function: "sphere", Alternative: Better, Values: []float64{0.01, 0.2}}, table.Rows[1])
	assert.Equal(t, Worse, table.Rows[2].Alternative)
	assert.True(t, math.IsNaN(table.Rows[2].Values[1]))

	_, err = AggregatePValues([]PValue{{Model: "m", Function: "f", Alternative: "two-sided"}})
	assert.True(t, errors.Is(err, optimization.ErrInvalidArgument))
}
