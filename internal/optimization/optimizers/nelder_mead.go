package optimizers

import (
	"context"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/optilab/internal/logging"
	"github.com/copyleftdev/optilab/internal/optimization"
)

// NelderMead is a derivative-free local search baseline. Points outside the
// bounds are projected before evaluation.
type NelderMead struct {
	// simplexScale is the initial simplex size relative to the bounds width.
	simplexScale float64
}

// NewNelderMead creates a Nelder-Mead baseline. A non-positive simplexScale
// selects 0.1.
func NewNelderMead(simplexScale float64) *NelderMead {
	if !(simplexScale > 0) {
		simplexScale = 0.1
	}
	return &NelderMead{simplexScale: simplexScale}
}

// Metadata describes the optimizer.
func (o *NelderMead) Metadata() optimization.OptimizerMetadata {
	return optimization.OptimizerMetadata{
		Name:            "nelder-mead",
		PopulationSize:  1,
		Hyperparameters: map[string]any{"simplex_scale": o.simplexScale},
	}
}

// Optimize runs one local search from a random point of the bounds.
func (o *NelderMead) Optimize(ctx context.Context, problem optimization.Problem) (*optimization.OptimizationResult, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).Named("nelder-mead")

	seed := uint64(problem.RandomSeed)
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	x0 := problem.Bounds.RandomPoint(problem.Function.Dim(), rng)

	var (
		log     optimization.PointList
		evalErr error
	)
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			pt, err := optimization.EvaluatePoint(problem.Function, problem.Bounds.Project(optimization.NewPoint(x)))
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			log = append(log, pt)
			return pt.Y
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: problem.CallBudget,
		Converger: &targetConverger{
			ctx:    ctx,
			target: problem.Target + problem.Tolerance,
			inner: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Iterations: 200,
			},
		},
	}
	method := &optimize.NelderMead{SimplexSize: o.simplexScale * problem.Bounds.Width()}

	res, err := optimize.Minimize(p, x0.X, settings, method)
	if evalErr != nil {
		return nil, evalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(log) == 0 {
		if err == nil {
			err = optimization.NewError(optimization.ErrNumericalFailure, "no evaluations performed")
		}
		return nil, err
	}

	fields := []zap.Field{zap.Int("evaluations", len(log)), zap.Float64("best", log.BestY())}
	if res != nil {
		fields = append(fields, zap.String("status", res.Status.String()))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Debug("run finished", fields...)

	iterations := 0
	if res != nil {
		iterations = res.Stats.MajorIterations
	}
	return newResult(problem, log, iterations), nil
}

// targetConverger stops once the best value reaches the target or ctx is
// done, and otherwise defers to inner.
type targetConverger struct {
	ctx    context.Context
	target float64
	inner  optimize.Converger
}

func (c *targetConverger) Init(dim int) {
	c.inner.Init(dim)
}

func (c *targetConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	if loc.F <= c.target {
		return optimize.FunctionThreshold
	}
	return c.inner.Converged(loc)
}
