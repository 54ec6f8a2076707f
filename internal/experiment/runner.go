package experiment

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/errors"
	"github.com/copyleftdev/optilab/internal/logging"
	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/functions"
)

// Plan describes the trials of one experiment. Every trial gets its own
// objective function from NewFunction and the seed Seed + trial.
type Plan struct {
	NewFunction func(trial int) (optimization.ObjectiveFunction, error)
	Bounds      optimization.Bounds
	CallBudget  int
	Tolerance   float64
	Target      float64
	Seed        int64
	Trials      int
}

// TrialResult is the outcome of one trial.
type TrialResult struct {
	Trial    int
	Seed     int64
	Target   float64
	Result   *optimization.OptimizationResult
	Calls    int
	Duration time.Duration
	Err      error
}

// ErrorLog returns the distance to the target of every evaluation, in order.
func (t TrialResult) ErrorLog() []float64 {
	if t.Result == nil {
		return nil
	}
	log := make([]float64, len(t.Result.Log))
	for i, p := range t.Result.Log {
		log[i] = p.Y - t.Target
	}
	return log
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds the number of trials run at once.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger passed to every trial.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTrialHook registers fn to be called after every trial. It may be
// called concurrently.
func WithTrialHook(fn func(method string, t TrialResult)) RunnerOption {
	return func(r *Runner) { r.hooks = append(r.hooks, fn) }
}

// Runner runs independent trials of one optimizer in parallel.
type Runner struct {
	optimizer optimization.Optimizer
	workers   int
	logger    *zap.Logger
	hooks     []func(string, TrialResult)
}

// NewRunner creates a runner for optimizer.
func NewRunner(optimizer optimization.Optimizer, opts ...RunnerOption) *Runner {
	r := &Runner{
		optimizer: optimizer,
		workers:   1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every trial of plan and returns their outcomes indexed by
// trial. A failing trial, including one that panics, does not stop the
// others; the failures are joined into the returned error as *RunError
// values.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]TrialResult, error) {
	if plan.NewFunction == nil {
		return nil, optimization.NewError(optimization.ErrInvalidArgument, "no objective function").
			WithComponent("experiment").WithOperation("Run")
	}
	if plan.Trials < 1 {
		return nil, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"number of trials must be positive, got %d", plan.Trials).
			WithComponent("experiment").WithOperation("Run")
	}

	method := r.optimizer.Metadata().Name
	results := make([]TrialResult, plan.Trials)

	p := pool.New().WithMaxGoroutines(r.workers)
	for trial := range plan.Trials {
		p.Go(func() {
			results[trial] = r.runTrial(ctx, method, plan, trial)
			for _, hook := range r.hooks {
				hook(method, results[trial])
			}
		})
	}
	p.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, stderrors.Join(errs...)
}

func (r *Runner) runTrial(ctx context.Context, method string, plan Plan, trial int) TrialResult {
	res := TrialResult{
		Trial:  trial,
		Seed:   plan.Seed + int64(trial),
		Target: plan.Target,
	}
	start := time.Now()

	var (
		name string
		dim  int
	)
	err := errors.Recover(func() error {
		f, err := plan.NewFunction(trial)
		if err != nil {
			return err
		}
		name, dim = f.Name(), f.Dim()
		counting := functions.NewCounting(f)

		logger := logging.ForRun(r.logger, method, name, dim, trial)
		result, err := r.optimizer.Optimize(logging.WithContext(ctx, logger), optimization.Problem{
			Function:   counting,
			Bounds:     plan.Bounds,
			CallBudget: plan.CallBudget,
			Tolerance:  plan.Tolerance,
			Target:     plan.Target,
			RandomSeed: res.Seed,
		})
		res.Calls = counting.Calls()
		if err != nil {
			return err
		}
		res.Result = result

		logger.Info("trial finished",
			zap.Int("evaluations", result.Evaluations()),
			zap.Int("generations", result.Generations),
			zap.Float64("best", result.BestSolution.Y),
			zap.Bool("converged", result.Converged))
		return nil
	})
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = errors.NewRunError(err, method, name, dim, trial)
		r.logger.Warn("trial failed", zap.String("method", method), zap.Int("trial", trial), zap.Error(err))
	}
	return res
}
