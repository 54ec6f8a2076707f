package optimizers

import (
	"context"

	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/logging"
	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/metamodel"
	"github.com/copyleftdev/optilab/internal/optimization/surrogate"
)

// WithObserver registers an observer on the metamodel of every run. The
// observer is shared by concurrent runs and must be safe for concurrent use.
func WithObserver(o metamodel.Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// MetamodelCMAES runs CMA-ES with every population passed through an
// approximate ranking metamodel. The metamodel's elite set is mu = lambda/2.
type MetamodelCMAES struct {
	settings

	name            string
	hyperparameters map[string]any
	// newSurrogate builds a fresh surrogate for a problem of dimensionality dim.
	newSurrogate func(dim int) (surrogate.Surrogate, error)
	// forwardCovariance passes the strategy's C to the metamodel every generation.
	forwardCovariance bool
}

// NewKNNCMAES creates knn-cma-es: CMA-ES with a k-nearest-neighbor metamodel.
func NewKNNCMAES(populationSize int, sigma0 float64, numNeighbors int, opts ...Option) (*MetamodelCMAES, error) {
	if _, err := surrogate.NewKNN(numNeighbors); err != nil {
		return nil, err
	}
	return newMetamodelCMAES("knn-cma-es", populationSize, sigma0,
		map[string]any{"num_neighbors": numNeighbors},
		func(int) (surrogate.Surrogate, error) { return surrogate.NewKNN(numNeighbors) },
		false, opts)
}

// LMMNeighbors returns d(d+3)+2, the neighborhood size used by lmm-cma-es.
func LMMNeighbors(dim int) int {
	return dim*(dim+3) + 2
}

// NewLMMCMAES creates lmm-cma-es: CMA-ES with a locally weighted polynomial
// metamodel measuring distance in the metric of the current covariance.
func NewLMMCMAES(populationSize int, sigma0 float64, degree int, opts ...Option) (*MetamodelCMAES, error) {
	if _, err := surrogate.NewLocallyWeighted(degree, 2, nil); err != nil {
		return nil, err
	}
	return newMetamodelCMAES("lmm-cma-es", populationSize, sigma0,
		map[string]any{"polynomial_dim": degree},
		func(dim int) (surrogate.Surrogate, error) {
			return surrogate.NewLocallyWeighted(degree, LMMNeighbors(dim), nil)
		},
		true, opts)
}

// NewPolyCMAES creates poly-cma-es: CMA-ES with a global polynomial metamodel.
func NewPolyCMAES(populationSize int, sigma0 float64, degree int, opts ...Option) (*MetamodelCMAES, error) {
	if _, err := surrogate.NewPolynomial(degree); err != nil {
		return nil, err
	}
	return newMetamodelCMAES("poly-cma-es", populationSize, sigma0,
		map[string]any{"degree": degree},
		func(int) (surrogate.Surrogate, error) { return surrogate.NewPolynomial(degree) },
		false, opts)
}

func newMetamodelCMAES(
	name string,
	populationSize int,
	sigma0 float64,
	hyperparameters map[string]any,
	newSurrogate func(dim int) (surrogate.Surrogate, error),
	forwardCovariance bool,
	opts []Option,
) (*MetamodelCMAES, error) {
	s, err := newSettings(populationSize, sigma0, opts)
	if err != nil {
		return nil, err
	}
	return &MetamodelCMAES{
		settings:          s,
		name:              name,
		hyperparameters:   hyperparameters,
		newSurrogate:      newSurrogate,
		forwardCovariance: forwardCovariance,
	}, nil
}

// Metadata describes the optimizer.
func (o *MetamodelCMAES) Metadata() optimization.OptimizerMetadata {
	hp := map[string]any{
		"sigma0":      o.sigma0,
		"bounds_mode": string(o.boundsMode),
	}
	for k, v := range o.hyperparameters {
		hp[k] = v
	}
	return optimization.OptimizerMetadata{
		Name:            o.name,
		PopulationSize:  o.populationSize,
		Hyperparameters: hp,
	}
}

// SurrogateMetadata describes the metamodel's surrogate for a problem of
// dimensionality dim.
func (o *MetamodelCMAES) SurrogateMetadata(dim int) (string, map[string]any, error) {
	s, err := o.newSurrogate(dim)
	if err != nil {
		return "", nil, err
	}
	return s.Name(), s.Hyperparameters(), nil
}

// Optimize runs one optimization. Each call owns its own strategy, surrogate
// and metamodel. It stops when the target is reached, the call budget is
// spent, the strategy converges or ctx is done.
func (o *MetamodelCMAES) Optimize(ctx context.Context, problem optimization.Problem) (*optimization.OptimizationResult, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).Named(o.name)

	es, err := o.spawnStrategy(problem, logger)
	if err != nil {
		return nil, err
	}
	s, err := o.newSurrogate(problem.Function.Dim())
	if err != nil {
		return nil, err
	}

	opts := []metamodel.Option{metamodel.WithLogger(logger)}
	for _, obs := range o.observers {
		opts = append(opts, metamodel.WithObserver(obs))
	}
	lambda := es.PopulationSize()
	arm, err := metamodel.New(lambda, lambda/2, problem.Function, s, opts...)
	if err != nil {
		return nil, err
	}

	generations := 0
	for !problem.Solved(arm.BestY()) && arm.Evaluations() < problem.CallBudget && !es.ShouldStop() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pop, err := es.Ask(lambda)
		if err != nil {
			return nil, err
		}
		if o.forwardCovariance {
			if err := arm.UpdateCovariance(es.Covariance()); err != nil {
				return nil, err
			}
		}
		evaluated, err := arm.EvaluateGeneration(pop)
		if err != nil {
			return nil, err
		}
		if err := es.Tell(evaluated); err != nil {
			return nil, err
		}
		generations++
	}

	logger.Debug("run finished",
		zap.Int("generations", generations),
		zap.Int("evaluations", arm.Evaluations()),
		zap.Int("surrogate_calls", s.Calls()),
		zap.Int("n_init", arm.NInit()),
		zap.Float64("best", arm.BestY()))
	return newResult(problem, arm.Log(), generations), nil
}
