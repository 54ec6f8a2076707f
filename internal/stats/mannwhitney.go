package stats

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Alternatives of a one-sided comparison between two methods minimizing
// the same function.
const (
	Better = "better"
	Worse  = "worse"
)

// UTest is the outcome of a Mann-Whitney U test of sample a against b.
type UTest struct {
	// U is the statistic of a: the number of pairs in which a's value is
	// larger, ties counting one half.
	U float64
	// PBetter is the p-value for the hypothesis that a tends to be smaller than b.
	PBetter float64
	// PWorse is the p-value for the hypothesis that a tends to be larger than b.
	PWorse float64
}

// PValue returns the p-value of the given alternative.
func (t UTest) PValue(alternative string) float64 {
	if alternative == Worse {
		return t.PWorse
	}
	return t.PBetter
}

// MannWhitneyU compares two independent samples with the normal
// approximation of the U distribution, correcting the variance for ties and
// applying a continuity correction. Identical samples with no variance give
// p-values of one.
func MannWhitneyU(a, b []float64) (UTest, error) {
	if len(a) == 0 || len(b) == 0 {
		return UTest{}, emptySample("MannWhitneyU")
	}
	n1, n2 := float64(len(a)), float64(len(b))
	n := n1 + n2

	ranks, ties := rank(slices.Concat(a, b))
	r1 := 0.0
	for _, r := range ranks[:len(a)] {
		r1 += r
	}
	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1

	mu := n1 * n2 / 2
	sigma := math.Sqrt(n1 * n2 / 12 * ((n + 1) - ties/(n*(n-1))))
	if sigma == 0 || math.IsNaN(sigma) {
		return UTest{U: u1, PBetter: 1, PWorse: 1}, nil
	}

	p := func(u float64) float64 {
		return distuv.UnitNormal.Survival((u - mu - 0.5) / sigma)
	}
	return UTest{U: u1, PBetter: p(u2), PWorse: p(u1)}, nil
}

// rank returns the 1-based ranks of values, averaging tied ranks, and the
// tie term sum(t^3 - t) over groups of t tied values.
func rank(values []float64) ([]float64, float64) {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] < values[order[j]] })

	ranks := make([]float64, len(values))
	ties := 0.0
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && values[order[j]] == values[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		t := float64(j - i)
		ties += t*t*t - t
		i = j
	}
	return ranks, ties
}

// PValue is one comparison of a model against the reference on a function.
type PValue struct {
	Model       string  `json:"model"`
	Function    string  `json:"function"`
	Alternative string  `json:"alternative"`
	PValue      float64 `json:"pvalue"`
}

// PValueRow holds the p-values of every model for one function and
// alternative. Missing comparisons are NaN.
type PValueRow struct {
	Function    string
	Alternative string
	Values      []float64
}

// PValueTable is a function x model table of p-values.
type PValueTable struct {
	// Models are the column names in order of first appearance.
	Models []string
	// Rows are sorted by function, then alternative.
	Rows []PValueRow
}

// AggregatePValues arranges p-values into a table with one row per function
// and alternative and one column per model.
func AggregatePValues(pvalues []PValue) (PValueTable, error) {
	type key struct{ function, alternative string }

	var table PValueTable
	column := map[string]int{}
	cells := map[key]map[string]float64{}
	for _, pv := range pvalues {
		if pv.Alternative != Better && pv.Alternative != Worse {
			return PValueTable{}, optimization.NewErrorf(optimization.ErrInvalidArgument,
				"alternative must be %q or %q, got %q", Better, Worse, pv.Alternative).
				WithComponent("stats").WithOperation("AggregatePValues")
		}
		if _, ok := column[pv.Model]; !ok {
			column[pv.Model] = len(table.Models)
			table.Models = append(table.Models, pv.Model)
		}
		k := key{pv.Function, pv.Alternative}
		if cells[k] == nil {
			cells[k] = map[string]float64{}
		}
		cells[k][pv.Model] = pv.PValue
	}

	keys := make([]key, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].function != keys[j].function {
			return keys[i].function < keys[j].function
		}
		return keys[i].alternative < keys[j].alternative
	})

	for _, k := range keys {
		row := PValueRow{Function: k.function, Alternative: k.alternative, Values: make([]float64, len(table.Models))}
		for i, model := range table.Models {
			v, ok := cells[k][model]
			if !ok {
				v = math.NaN()
			}
			row.Values[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
