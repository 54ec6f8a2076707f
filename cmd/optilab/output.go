package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/optilab/internal/experiment"
	"github.com/copyleftdev/optilab/internal/stats"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeStatsTable(w io.Writer, rows []experiment.SeriesStats) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tDIM\tRUNS\tMIN\tMEAN\tMAX\tSTD\tMEDIAN\tIQR\tEVALS TO BEST")
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.1f ± %.1f\n",
			s.Name, s.Dim, s.Runs, s.Min, s.Mean, s.Max, s.Std, s.Median, s.IQR,
			s.EvalsToBestMean, s.EvalsToBestStd)
	}
	return tw.Flush()
}

// writeECDFTable prints, per method, the evaluation budget per dimension of
// its curve, the final ECDF value and the mean ECDF value over the curve.
func writeECDFTable(w io.Writer, curves map[string]stats.Curve) error {
	methods := make([]string, 0, len(curves))
	for method := range curves {
		methods = append(methods, method)
	}
	slices.Sort(methods)

	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tEVALS/DIM\tFINAL\tMEAN")
	for _, method := range methods {
		c := curves[method]
		if len(c.Y) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.3f\t%.3f\n",
			method, c.X[len(c.X)-1], c.Y[len(c.Y)-1], floats.Sum(c.Y)/float64(len(c.Y)))
	}
	return tw.Flush()
}

func writePValueTable(w io.Writer, pvalues []stats.PValue) error {
	table, err := stats.AggregatePValues(pvalues)
	if err != nil {
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "FUNCTION\tALTERNATIVE\t%s\n", strings.Join(table.Models, "\t"))
	for _, row := range table.Rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			cells[i] = fmt.Sprintf("%.4g", v)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Function, row.Alternative, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
