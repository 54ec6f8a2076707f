package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/config"
	"github.com/copyleftdev/optilab/internal/experiment"
	"github.com/copyleftdev/optilab/internal/metrics"
	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/functions"
	"github.com/copyleftdev/optilab/internal/optimization/optimizers"
	"github.com/copyleftdev/optilab/internal/storage"
)

// runOptions are the flags of the run command.
type runOptions struct {
	method      string
	function    string
	name        string
	dim         int
	popSize     int
	sigma0      float64
	neighbors   int
	degree      int
	budget      int
	tolerance   float64
	target      float64
	trials      int
	workers     int
	seed        int64
	lower       float64
	upper       float64
	boundsMode  string
	noise       float64
	outputDir   string
	dbType      string
	dbDSN       string
	metricsFile string
}

func defaultRunOptions(cfg *config.Config) *runOptions {
	e := cfg.Experiment
	return &runOptions{
		method:      e.Method,
		function:    e.Function,
		dim:         e.Dim,
		popSize:     e.PopSize,
		sigma0:      e.Sigma0,
		neighbors:   5,
		degree:      2,
		budget:      e.CallBudget,
		tolerance:   e.Tolerance,
		target:      e.Target,
		trials:      e.Trials,
		workers:     e.Workers,
		seed:        e.Seed,
		lower:       e.BoundsLower,
		upper:       e.BoundsUpper,
		boundsMode:  e.BoundsMode,
		outputDir:   cfg.OutputDir,
		dbType:      cfg.Database.Type,
		dbDSN:       cfg.Database.DSN,
		metricsFile: cfg.MetricsTextfile,
	}
}

func newRunCmd(a *app) *cobra.Command {
	opts := defaultRunOptions(a.cfg)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run repeated trials of one method on one function",
		Long: `Runs independent trials of an optimizer, then writes the evaluation logs
as JSON and their statistics as CSV to the output directory.`,
		Example: "  optilab run --method knn-cma-es --function sphere --dim 10 --trials 5",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExperiment(ctx, cmd, a.logger, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.method, "method", opts.method, fmt.Sprintf("Optimizer %v", optimizers.Names()))
	f.StringVar(&opts.function, "function", opts.function, fmt.Sprintf("Objective function %v", functions.Names()))
	f.StringVar(&opts.name, "name", "", "Series name (default: method name)")
	f.IntVar(&opts.dim, "dim", opts.dim, "Problem dimensionality")
	f.IntVar(&opts.popSize, "popsize", opts.popSize, "CMA-ES population size (0 selects 4 + 3 ln(dim))")
	f.Float64Var(&opts.sigma0, "sigma0", opts.sigma0, "Initial CMA-ES step size")
	f.IntVar(&opts.neighbors, "neighbors", opts.neighbors, "Neighbors of the KNN surrogate")
	f.IntVar(&opts.degree, "degree", opts.degree, "Degree of the polynomial surrogates")
	f.IntVar(&opts.budget, "budget", opts.budget, "Real evaluations per trial")
	f.Float64Var(&opts.tolerance, "tolerance", opts.tolerance, "Distance to the target counted as solved")
	f.Float64Var(&opts.target, "target", opts.target, "Known optimum value")
	f.IntVar(&opts.trials, "trials", opts.trials, "Number of independent trials")
	f.IntVar(&opts.workers, "workers", opts.workers, "Trials run in parallel")
	f.Int64Var(&opts.seed, "seed", opts.seed, "Seed of the first trial")
	f.Float64Var(&opts.lower, "lower", opts.lower, "Lower bound of every coordinate")
	f.Float64Var(&opts.upper, "upper", opts.upper, "Upper bound of every coordinate")
	f.StringVar(&opts.boundsMode, "bounds-mode", opts.boundsMode, "Bounds handling (project, reflect, wrap)")
	f.Float64Var(&opts.noise, "noise", 0, "Relative Gaussian noise added to the objective")
	f.StringVar(&opts.outputDir, "output-dir", opts.outputDir, "Directory for results JSON and stats CSV")
	f.StringVar(&opts.dbType, "db-type", opts.dbType, "Results store (none, memory, sqlite)")
	f.StringVar(&opts.dbDSN, "db-dsn", opts.dbDSN, "SQLite data source name")
	f.StringVar(&opts.metricsFile, "metrics-textfile", opts.metricsFile, "Write Prometheus metrics to this file")
	return cmd
}

func runExperiment(ctx context.Context, cmd *cobra.Command, logger *zap.Logger, opts *runOptions) error {
	bounds, err := optimization.NewBounds(opts.lower, opts.upper)
	if err != nil {
		return err
	}
	mode, err := optimization.ParseBoundsMode(opts.boundsMode)
	if err != nil {
		return err
	}
	probe, err := newFunction(opts, 0)
	if err != nil {
		return err
	}

	m := metrics.New()
	optimizer, err := optimizers.ByName(opts.method, optimizers.Config{
		PopulationSize: opts.popSize,
		Sigma0:         opts.sigma0,
		NumNeighbors:   opts.neighbors,
		Degree:         opts.degree,
	}, optimizers.WithBoundsMode(mode), optimizers.WithObserver(m.Observer(opts.method)))
	if err != nil {
		return err
	}

	results := experiment.NewResults(buildMetadata(optimizer, probe))
	logger.Info("experiment started",
		zap.String("id", results.Metadata.ID),
		zap.String("method", opts.method),
		zap.String("function", probe.Name()),
		zap.Int("dim", opts.dim),
		zap.Int("trials", opts.trials))

	runner := experiment.NewRunner(optimizer,
		experiment.WithWorkers(opts.workers),
		experiment.WithLogger(logger),
		experiment.WithTrialHook(func(method string, t experiment.TrialResult) {
			m.RecordTrial(method, t.Duration, t.Err)
		}))
	trials, runErr := runner.Run(ctx, experiment.Plan{
		NewFunction: func(trial int) (optimization.ObjectiveFunction, error) { return newFunction(opts, trial) },
		Bounds:      bounds,
		CallBudget:  opts.budget,
		Tolerance:   opts.tolerance,
		Target:      opts.target,
		Seed:        opts.seed,
		Trials:      opts.trials,
	})
	if trials == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("some trials failed", zap.Error(runErr))
	}

	name := opts.name
	if name == "" {
		name = optimizer.Metadata().Name
	}
	results.AddTrials(name, opts.dim, trials)
	results.Metadata.EndNow()
	if len(results.Data[0].Logs) == 0 {
		return fmt.Errorf("all trials failed: %w", runErr)
	}

	stem := filepath.Join(opts.outputDir, fmt.Sprintf("%s_%s_%dD_%s", name, probe.Name(), opts.dim, results.Metadata.ID[:8]))
	if err := results.SaveJSON(stem + ".json"); err != nil {
		return err
	}
	if err := results.SaveStatsCSV(stem + ".csv"); err != nil {
		return err
	}
	logger.Info("results written", zap.String("path", stem+".json"))

	if err := saveToStore(ctx, opts, results); err != nil {
		return err
	}
	if opts.metricsFile != "" {
		if err := m.WriteTextfile(opts.metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "experiment %s\n\n", results.Metadata.ID)
	return writeStatsTable(out, results.Stats())
}

// newFunction builds the objective of one trial. Noise streams are seeded
// per trial so repeated experiments reproduce.
func newFunction(opts *runOptions, trial int) (optimization.ObjectiveFunction, error) {
	f, err := functions.ByName(opts.function, opts.dim)
	if err != nil {
		return nil, err
	}
	if opts.noise > 0 {
		return functions.NewNoisy(f, opts.noise, uint64(opts.seed)+uint64(trial)), nil
	}
	return f, nil
}

func buildMetadata(o optimization.Optimizer, f optimization.ObjectiveFunction) experiment.Metadata {
	md := o.Metadata()
	hp := map[string]any{"population_size": md.PopulationSize}
	for k, v := range md.Hyperparameters {
		hp[k] = v
	}

	meta := experiment.Metadata{
		MethodName:            md.Name,
		MethodHyperparameters: hp,
		MetamodelName:         "none",
		BenchmarkName:         f.Name(),
	}
	if mm, ok := o.(*optimizers.MetamodelCMAES); ok {
		if name, shp, err := mm.SurrogateMetadata(f.Dim()); err == nil {
			meta.MetamodelName = name
			meta.MetamodelHyperparameters = shp
		}
	}
	return meta
}

func saveToStore(ctx context.Context, opts *runOptions, results *experiment.Results) error {
	if opts.dbType == "" || opts.dbType == "none" {
		return nil
	}
	store, err := storage.NewStore(opts.dbType, opts.dbDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	return store.SaveResults(ctx, results)
}
