// Package stats computes the summaries and comparisons reported for
// optimization experiments.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Summary describes a sample of values.
type Summary struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	Max    float64 `json:"max"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	IQR    float64 `json:"iqr"`
}

// Summarize returns the summary of values. Std is the population standard
// deviation.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, emptySample("Summarize")
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	sorted := sortedCopy(values)
	return Summary{
		N:      len(values),
		Min:    floats.Min(values),
		Mean:   mean,
		Max:    floats.Max(values),
		Std:    std,
		Median: quantile(0.5, sorted),
		IQR:    quantile(0.75, sorted) - quantile(0.25, sorted),
	}, nil
}

// Median returns the median of values, averaging the two middle values of
// an even-sized sample. It returns NaN for an empty sample.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return quantile(0.5, sortedCopy(values))
}

// IQR returns the interquartile range of values. It returns NaN for an
// empty sample.
func IQR(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := sortedCopy(values)
	return quantile(0.75, sorted) - quantile(0.25, sorted)
}

// ConvergenceCurve returns the running minimum of log.
func ConvergenceCurve(log []float64) []float64 {
	curve := make([]float64, len(log))
	best := math.Inf(1)
	for i, v := range log {
		best = math.Min(best, v)
		curve[i] = best
	}
	return curve
}

// quantile interpolates linearly between the closest ranks of sorted, so
// that the quantile p sits at position p*(n-1).
func quantile(p float64, sorted []float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func sortedCopy(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted
}

func emptySample(op string) error {
	return optimization.NewError(optimization.ErrInvalidArgument, "empty sample").
		WithComponent("stats").WithOperation(op)
}
