package optimization

import (
	"math"
	"testing"
)

// quadratic is a simple sphere objective used across tests.
type quadratic struct{ dim int }

func (q quadratic) Name() string { return "quadratic" }
func (q quadratic) Dim() int     { return q.dim }

func (q quadratic) Evaluate(x []float64) (float64, error) {
	if len(x) != q.dim {
		return 0, DimensionMismatch(q.dim, len(x))
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// pointsY builds evaluated 1D points at x = 0, 1, 2, ... with the given values.
func pointsY(ys ...float64) PointList {
	list := make(PointList, len(ys))
	for i, y := range ys {
		list[i] = EvaluatedPoint([]float64{float64(i)}, y)
	}
	return list
}
