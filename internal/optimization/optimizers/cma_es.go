// Package optimizers provides the run drivers that tie an evolution
// strategy, an optional metamodel and an objective function together.
package optimizers

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/logging"
	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/cmaes"
	"github.com/copyleftdev/optilab/internal/optimization/metamodel"
)

// CMAES runs plain CMA-ES: every candidate is evaluated for real.
type CMAES struct {
	settings
}

// NewCMAES creates a CMA-ES driver. A zero population size selects the
// default for the problem's dimensionality.
func NewCMAES(populationSize int, sigma0 float64, opts ...Option) (*CMAES, error) {
	s, err := newSettings(populationSize, sigma0, opts)
	if err != nil {
		return nil, err
	}
	return &CMAES{settings: s}, nil
}

// Metadata describes the optimizer.
func (o *CMAES) Metadata() optimization.OptimizerMetadata {
	return optimization.OptimizerMetadata{
		Name:           "cma-es",
		PopulationSize: o.populationSize,
		Hyperparameters: map[string]any{
			"sigma0":      o.sigma0,
			"bounds_mode": string(o.boundsMode),
		},
	}
}

// Optimize runs one optimization. It stops when the target is reached, the
// call budget is spent, the strategy converges or ctx is done.
func (o *CMAES) Optimize(ctx context.Context, problem optimization.Problem) (*optimization.OptimizationResult, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).Named("cma-es")

	es, err := o.spawnStrategy(problem, logger)
	if err != nil {
		return nil, err
	}

	var log optimization.PointList
	generations := 0
	for !problem.Solved(log.BestY()) && len(log) < problem.CallBudget && !es.ShouldStop() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pop, err := es.Ask(es.PopulationSize())
		if err != nil {
			return nil, err
		}
		for i := range pop {
			if pop[i], err = optimization.EvaluatePoint(problem.Function, pop[i]); err != nil {
				return nil, err
			}
		}
		log = append(log, pop...)

		if err := es.Tell(pop); err != nil {
			return nil, err
		}
		generations++
	}

	logger.Debug("run finished",
		zap.Int("generations", generations),
		zap.Int("evaluations", len(log)),
		zap.Float64("best", log.BestY()))
	return newResult(problem, log, generations), nil
}

// settings is the configuration shared by the CMA-ES based drivers.
type settings struct {
	populationSize int
	sigma0         float64
	boundsMode     optimization.BoundsMode
	observers      []metamodel.Observer
}

func newSettings(populationSize int, sigma0 float64, opts []Option) (settings, error) {
	s := settings{
		populationSize: populationSize,
		sigma0:         sigma0,
		boundsMode:     optimization.BoundsReflect,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if populationSize != 0 && populationSize < 2 {
		return settings{}, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"population size must be 0 or at least 2, got %d", populationSize).WithComponent("optimizers")
	}
	if !(sigma0 > 0) {
		return settings{}, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"sigma0 must be positive, got %v", sigma0).WithComponent("optimizers")
	}
	if _, err := optimization.ParseBoundsMode(string(s.boundsMode)); err != nil {
		return settings{}, err
	}
	return s, nil
}

// Option configures a driver.
type Option func(*settings)

// WithBoundsMode selects how asked candidates are brought into bounds.
func WithBoundsMode(mode optimization.BoundsMode) Option {
	return func(s *settings) { s.boundsMode = mode }
}

// spawnStrategy starts CMA-ES from a uniformly random point of the bounds.
func (s settings) spawnStrategy(problem optimization.Problem, logger *zap.Logger) (*cmaes.Strategy, error) {
	seed := uint64(problem.RandomSeed)
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	x0 := problem.Bounds.RandomPoint(problem.Function.Dim(), rng)

	bounds := problem.Bounds
	return cmaes.New(cmaes.Config{
		Mean:           x0.X,
		Sigma:          s.sigma0,
		PopulationSize: s.populationSize,
		Bounds:         &bounds,
		BoundsMode:     s.boundsMode,
		Seed:           seed,
	}, cmaes.WithLogger(logger))
}

func newResult(problem optimization.Problem, log optimization.PointList, generations int) *optimization.OptimizationResult {
	best, _ := log.Best()
	return &optimization.OptimizationResult{
		Log:          log,
		BestSolution: best,
		Generations:  generations,
		Converged:    len(log) > 0 && problem.Solved(best.Y),
	}
}
