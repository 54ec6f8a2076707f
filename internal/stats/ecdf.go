package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Curve is a sequence of (x, y) plot points.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// ECDF computes the empirical cumulative distribution curve of every method
// in data, which maps a method name to its error logs.
//
// nThresholds thresholds are spread evenly in log10 space above
// allowedError up to the worst final error of any run. At evaluation i of a
// run, y is the fraction of thresholds the convergence curve has reached;
// runs shorter than the longest run of their method are extended with their
// last value and the curves of one method are averaged. x is the number of
// evaluations divided by dim. Errors below allowedError count as
// allowedError.
func ECDF(data map[string][][]float64, dim, nThresholds int, allowedError float64) (map[string]Curve, error) {
	switch {
	case dim < 1:
		return nil, invalidECDF("dimension must be positive, got %d", dim)
	case nThresholds < 1:
		return nil, invalidECDF("number of thresholds must be positive, got %d", nThresholds)
	case !(allowedError > 0):
		return nil, invalidECDF("allowed error must be positive, got %g", allowedError)
	case len(data) == 0:
		return nil, invalidECDF("no data")
	}

	low := math.Log10(allowedError)
	high := math.Inf(-1)
	processed := make(map[string][][]float64, len(data))
	lengths := make(map[string]int, len(data))
	for method, logs := range data {
		if len(logs) == 0 {
			return nil, invalidECDF("%s: no logs", method)
		}
		for i, log := range logs {
			if len(log) == 0 {
				return nil, invalidECDF("%s: log %d is empty", method, i)
			}
			curve := ConvergenceCurve(log)
			for j, v := range curve {
				curve[j] = math.Log10(math.Max(v, allowedError))
			}
			processed[method] = append(processed[method], curve)
			lengths[method] = max(lengths[method], len(curve))
			high = math.Max(high, curve[len(curve)-1])
		}
	}

	span := make([]float64, nThresholds+1)
	floats.Span(span, low, high)
	thresholds := span[1:]

	out := make(map[string]Curve, len(processed))
	for method, logs := range processed {
		n := lengths[method]
		curve := Curve{X: make([]float64, n), Y: make([]float64, n)}
		for i := range curve.X {
			curve.X[i] = float64(i+1) / float64(dim)
		}
		for _, log := range logs {
			for i := range n {
				v := log[min(i, len(log)-1)]
				curve.Y[i] += reached(thresholds, v)
			}
		}
		floats.Scale(1/float64(len(logs)), curve.Y)
		out[method] = curve
	}
	return out, nil
}

// reached returns the fraction of thresholds not below v.
func reached(thresholds []float64, v float64) float64 {
	count := 0
	for _, t := range thresholds {
		if t >= v {
			count++
		}
	}
	return float64(count) / float64(len(thresholds))
}

func invalidECDF(format string, args ...any) error {
	return optimization.NewErrorf(optimization.ErrInvalidArgument, format, args...).
		WithComponent("stats").WithOperation("ECDF")
}
