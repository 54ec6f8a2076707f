package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms.
// An Optimizer holds only configuration; every call to Optimize owns its own
// state, so independent runs may execute concurrently on one Optimizer.
type Optimizer interface {
	// Optimize runs a single optimization of the problem.
	Optimize(ctx context.Context, problem Problem) (*OptimizationResult, error)

	// Metadata describes the optimizer and its hyperparameters.
	Metadata() OptimizerMetadata
}

// ObjectiveFunction is a pure function f(x) -> y of fixed dimensionality.
type ObjectiveFunction interface {
	// Name identifies the function in logs and exported results.
	Name() string

	// Dim returns the expected input length.
	Dim() int

	// Evaluate computes f(x). It fails with ErrDimensionMismatch when
	// len(x) != Dim().
	Evaluate(x []float64) (float64, error)
}

// EvaluatePoint evaluates p with f and returns the evaluated copy.
func EvaluatePoint(f ObjectiveFunction, p Point) (Point, error) {
	y, err := f.Evaluate(p.X)
	if err != nil {
		return Point{}, err
	}
	return Point{X: p.X, Y: y, HasY: true, IsEvaluated: true}, nil
}

// Problem contains the configuration of one optimization run.
type Problem struct {
	// Function to minimize.
	Function ObjectiveFunction

	// Bounds of the search space, shared by every dimension.
	Bounds Bounds

	// CallBudget is the maximum number of real evaluations.
	CallBudget int

	// Tolerance of y above Target that counts as solved.
	Tolerance float64

	// Target value of the objective.
	Target float64

	// RandomSeed for reproducibility.
	RandomSeed int64
}

// Validate checks the problem before a run starts.
func (p Problem) Validate() error {
	if p.Function == nil {
		return NewError(ErrInvalidArgument, "objective function is required").WithComponent("problem")
	}
	if p.Function.Dim() < 1 {
		return NewErrorf(ErrInvalidArgument, "dimensionality must be positive, got %d", p.Function.Dim()).
			WithComponent("problem")
	}
	if !p.Bounds.IsValid() {
		return NewErrorf(ErrInvalidArgument, "degenerate bounds [%v, %v]", p.Bounds.Lower, p.Bounds.Upper).
			WithComponent("problem")
	}
	if p.CallBudget < 1 {
		return NewErrorf(ErrInvalidArgument, "call budget must be positive, got %d", p.CallBudget).
			WithComponent("problem")
	}
	if p.Tolerance < 0 {
		return NewErrorf(ErrInvalidArgument, "tolerance must be non-negative, got %v", p.Tolerance).
			WithComponent("problem")
	}
	return nil
}

// Solved reports whether y is within tolerance of the target.
func (p Problem) Solved(y float64) bool {
	return y <= p.Target+p.Tolerance
}

// OptimizerMetadata describes an optimizer.
type OptimizerMetadata struct {
	Name            string         `json:"name"`
	PopulationSize  int            `json:"population_size"`
	Hyperparameters map[string]any `json:"hyperparameters"`
}

// OptimizationResult contains the result of an optimization run.
type OptimizationResult struct {
	// Log holds every real evaluation in order.
	Log PointList

	// BestSolution is the best real evaluation.
	BestSolution Point

	// Generations is the number of ask/tell cycles performed.
	Generations int

	// Converged is set when the target was reached within tolerance.
	Converged bool
}

// Evaluations returns the number of real evaluations in the log.
func (r *OptimizationResult) Evaluations() int {
	return len(r.Log)
}

// EvolutionStrategy is the ask/tell contract of the outer search.
type EvolutionStrategy interface {
	// Ask returns n unevaluated candidates from the current distribution.
	Ask(n int) (PointList, error)

	// Tell updates the distribution from evaluated candidates.
	Tell(points PointList) error

	// ShouldStop reports internal convergence of the strategy.
	ShouldStop() bool
}
