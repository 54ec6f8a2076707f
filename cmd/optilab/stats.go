package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/experiment"
)

type statsOptions struct {
	reference    string
	thresholds   int
	allowedError float64
	csvPath      string
}

func newStatsCmd(a *app) *cobra.Command {
	opts := &statsOptions{thresholds: 100, allowedError: 1e-8}

	cmd := &cobra.Command{
		Use:   "stats results.json [results.json...]",
		Short: "Summarize and compare experiment results",
		Long: `Prints the statistics of every series, an ECDF summary per dimensionality
and, when several methods are present, one-sided Mann-Whitney U p-values
of every method against the reference.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := make([]*experiment.Results, 0, len(args))
			for _, path := range args {
				r, err := experiment.LoadJSON(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Debug("results loaded", zap.String("path", path), zap.String("id", r.Metadata.ID))
				records = append(records, r)
			}
			return printStats(cmd, records, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.reference, "reference", "", "Series compared against (default: first series)")
	f.IntVar(&opts.thresholds, "thresholds", opts.thresholds, "Number of ECDF thresholds")
	f.Float64Var(&opts.allowedError, "allowed-error", opts.allowedError, "Error counted as solved by the ECDF")
	f.StringVar(&opts.csvPath, "csv", "", "Also write the statistics CSV to this path")
	return cmd
}

func printStats(cmd *cobra.Command, records []*experiment.Results, opts *statsOptions) error {
	out := cmd.OutOrStdout()
	merged := experiment.Merge(records...)
	if len(merged.Data) == 0 {
		return fmt.Errorf("no series to summarize")
	}

	if err := writeStatsTable(out, merged.Stats()); err != nil {
		return err
	}
	if opts.csvPath != "" {
		if err := merged.SaveStatsCSV(opts.csvPath); err != nil {
			return err
		}
	}

	var dims []int
	for _, s := range merged.Data {
		if !slices.Contains(dims, s.Dim) {
			dims = append(dims, s.Dim)
		}
	}
	slices.Sort(dims)
	for _, dim := range dims {
		curves, err := merged.ECDF(dim, opts.thresholds, opts.allowedError)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nECDF (%dD)\n", dim)
		if err := writeECDFTable(out, curves); err != nil {
			return err
		}
	}

	reference := opts.reference
	if reference == "" {
		reference = merged.Data[0].Name
	}
	pvalues, err := experiment.ComparePValues(records, reference)
	if err != nil {
		return err
	}
	if len(pvalues) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nMann-Whitney U p-values against %s\n", reference)
	return writePValueTable(out, pvalues)
}
