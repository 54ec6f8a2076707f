package experiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/stats"
)

// SeriesStats summarizes the best value reached by every run of a series
// and how many evaluations each run needed to reach it.
type SeriesStats struct {
	Name            string
	Dim             int
	Runs            int
	Min             float64
	Mean            float64
	Max             float64
	Std             float64
	Median          float64
	IQR             float64
	EvalsToBestMean float64
	EvalsToBestStd  float64
}

// Stats summarizes every series. Series without runs are reported with
// zero runs and NaN statistics.
func (r *Results) Stats() []SeriesStats {
	out := make([]SeriesStats, 0, len(r.Data))
	for _, series := range r.Data {
		out = append(out, seriesStats(series))
	}
	return out
}

func seriesStats(series Series) SeriesStats {
	s := SeriesStats{Name: series.Name, Dim: series.Dim}

	best := make([]float64, 0, len(series.Logs))
	evals := make([]float64, 0, len(series.Logs))
	for _, log := range series.Logs {
		if len(log) == 0 {
			continue
		}
		// floats.MinIdx returns the first minimum.
		i := floats.MinIdx(log)
		best = append(best, log[i])
		evals = append(evals, float64(i+1))
	}
	s.Runs = len(best)

	summary, err := stats.Summarize(best)
	if err != nil {
		nan := math.NaN()
		s.Min, s.Mean, s.Max, s.Std, s.Median, s.IQR = nan, nan, nan, nan, nan, nan
		s.EvalsToBestMean, s.EvalsToBestStd = nan, nan
		return s
	}
	s.Min, s.Mean, s.Max, s.Std = summary.Min, summary.Mean, summary.Max, summary.Std
	s.Median, s.IQR = summary.Median, summary.IQR
	s.EvalsToBestMean, s.EvalsToBestStd = stat.PopMeanStdDev(evals, nil)
	return s
}

var statsHeader = []string{
	"name", "dim", "runs", "min", "mean", "max", "std", "median", "iqr",
	"evals_to_best_mean", "evals_to_best_std",
}

// WriteStatsCSV writes the statistics of every series as CSV with a header
// row.
func (r *Results) WriteStatsCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsHeader); err != nil {
		return err
	}
	for _, s := range r.Stats() {
		record := []string{
			s.Name,
			strconv.Itoa(s.Dim),
			strconv.Itoa(s.Runs),
			formatFloat(s.Min),
			formatFloat(s.Mean),
			formatFloat(s.Max),
			formatFloat(s.Std),
			formatFloat(s.Median),
			formatFloat(s.IQR),
			formatFloat(s.EvalsToBestMean),
			formatFloat(s.EvalsToBestStd),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveStatsCSV writes the statistics CSV to path.
func (r *Results) SaveStatsCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	if err := r.WriteStatsCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ECDF computes the ECDF curves of the series of dimensionality dim, keyed
// by series name.
func (r *Results) ECDF(dim, nThresholds int, allowedError float64) (map[string]stats.Curve, error) {
	data := map[string][][]float64{}
	for _, series := range r.Data {
		if series.Dim == dim {
			data[series.Name] = append(data[series.Name], series.Logs...)
		}
	}
	return stats.ECDF(data, dim, nThresholds, allowedError)
}

// Merge concatenates the data of several records. The metadata of the
// first record is kept.
func Merge(records ...*Results) *Results {
	if len(records) == 0 {
		return NewResults(Metadata{})
	}
	merged := &Results{Metadata: records[0].Metadata}
	for _, r := range records {
		merged.Data = append(merged.Data, r.Data...)
	}
	return merged
}

// ComparePValues tests every series against the series named reference
// with the same dimensionality, comparing the best values of their runs.
// Each comparison yields a "better" and a "worse" p-value; the function
// label is "<benchmark>_<dim>D", where the benchmark comes from the
// metadata of the record holding the series.
func ComparePValues(records []*Results, reference string) ([]stats.PValue, error) {
	type key struct {
		benchmark string
		dim       int
	}
	refs := map[key][]float64{}
	for _, r := range records {
		for _, series := range r.Data {
			if series.Name == reference {
				k := key{r.Metadata.BenchmarkName, series.Dim}
				refs[k] = append(refs[k], bestValues(series)...)
			}
		}
	}
	if len(refs) == 0 {
		return nil, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"no series named %q", reference).WithComponent("experiment").WithOperation("ComparePValues")
	}

	var out []stats.PValue
	for _, r := range records {
		for _, series := range r.Data {
			k := key{r.Metadata.BenchmarkName, series.Dim}
			ref, ok := refs[k]
			if series.Name == reference || !ok {
				continue
			}
			test, err := stats.MannWhitneyU(bestValues(series), ref)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", series.Name, err)
			}
			function := fmt.Sprintf("%s_%dD", k.benchmark, k.dim)
			out = append(out,
				stats.PValue{Model: series.Name, Function: function, Alternative: stats.Better, PValue: test.PBetter},
				stats.PValue{Model: series.Name, Function: function, Alternative: stats.Worse, PValue: test.PWorse},
			)
		}
	}
	return out, nil
}

func bestValues(series Series) []float64 {
	best := make([]float64, 0, len(series.Logs))
	for _, log := range series.Logs {
		if len(log) > 0 {
			best = append(best, floats.Min(log))
		}
	}
	return best
}
