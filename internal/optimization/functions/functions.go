// Package functions provides benchmark objective functions and wrappers
// that meter or perturb them.
package functions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// base holds the name and dimensionality shared by every benchmark.
type base struct {
	name string
	dim  int
}

func (b base) Name() string { return b.name }
func (b base) Dim() int     { return b.dim }

func (b base) check(x []float64) error {
	if len(x) != b.dim {
		return optimization.DimensionMismatch(b.dim, len(x)).
			WithComponent(b.name).WithOperation("Evaluate")
	}
	return nil
}

// Sphere is sum(x_i^2). Global minimum 0 at the origin.
type Sphere struct{ base }

// NewSphere creates a sphere function of the given dimensionality.
func NewSphere(dim int) *Sphere { return &Sphere{base{"sphere", dim}} }

// Evaluate computes f(x).
func (f *Sphere) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// Rastrigin is 10n + sum(x_i^2 - 10 cos(2 pi x_i)).
type Rastrigin struct{ base }

// NewRastrigin creates a Rastrigin function of the given dimensionality.
func NewRastrigin(dim int) *Rastrigin { return &Rastrigin{base{"rastrigin", dim}} }

// Evaluate computes f(x).
func (f *Rastrigin) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v) + 10
	}
	return sum, nil
}

// Rosenbrock is sum(100 (x_i^2 - x_{i+1})^2 + (x_i - 1)^2). Minimum 0 at (1, ..., 1).
type Rosenbrock struct{ base }

// NewRosenbrock creates a Rosenbrock function of the given dimensionality.
func NewRosenbrock(dim int) *Rosenbrock { return &Rosenbrock{base{"rosenbrock", dim}} }

// Evaluate computes f(x).
func (f *Rosenbrock) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i]*x[i] - x[i+1]
		b := x[i] - 1
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// Ackley is the standard Ackley function with a = 20, b = 0.2, c = 2 pi.
type Ackley struct{ base }

// NewAckley creates an Ackley function of the given dimensionality.
func NewAckley(dim int) *Ackley { return &Ackley{base{"ackley", dim}} }

// Evaluate computes f(x).
func (f *Ackley) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	n := float64(len(x))
	sq, cs := 0.0, 0.0
	for _, v := range x {
		sq += v * v
		cs += math.Cos(2 * math.Pi * v)
	}
	return 20 - 20*math.Exp(-0.2*math.Sqrt(sq/n)) + math.E - math.Exp(cs/n), nil
}

// BentCigar is x_0^2 + 1e6 sum_{i>0} x_i^2.
type BentCigar struct{ base }

// NewBentCigar creates a Bent Cigar function of the given dimensionality.
func NewBentCigar(dim int) *BentCigar { return &BentCigar{base{"bent_cigar", dim}} }

// Evaluate computes f(x).
func (f *BentCigar) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x[1:] {
		sum += v * v
	}
	return x[0]*x[0] + 1e6*sum, nil
}

// CumulativeSquaredSums is sum_i (sum_{j<=i} x_j)^2, also known as Schwefel 1.2.
type CumulativeSquaredSums struct{ base }

// NewCumulativeSquaredSums creates the function for the given dimensionality.
func NewCumulativeSquaredSums(dim int) *CumulativeSquaredSums {
	return &CumulativeSquaredSums{base{"cumulative_squared_sums", dim}}
}

// Evaluate computes f(x).
func (f *CumulativeSquaredSums) Evaluate(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}
	sum, prefix := 0.0, 0.0
	for _, v := range x {
		prefix += v
		sum += prefix * prefix
	}
	return sum, nil
}

var registry = map[string]func(dim int) optimization.ObjectiveFunction{
	"sphere":                  func(d int) optimization.ObjectiveFunction { return NewSphere(d) },
	"rastrigin":               func(d int) optimization.ObjectiveFunction { return NewRastrigin(d) },
	"rosenbrock":              func(d int) optimization.ObjectiveFunction { return NewRosenbrock(d) },
	"ackley":                  func(d int) optimization.ObjectiveFunction { return NewAckley(d) },
	"bent_cigar":              func(d int) optimization.ObjectiveFunction { return NewBentCigar(d) },
	"cumulative_squared_sums": func(d int) optimization.ObjectiveFunction { return NewCumulativeSquaredSums(d) },
}

// ByName builds a registered benchmark of the given dimensionality.
func ByName(name string, dim int) (optimization.ObjectiveFunction, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"unknown function %q, expected one of %v", name, Names()).WithComponent("functions")
	}
	if dim < 1 {
		return nil, optimization.NewErrorf(optimization.ErrInvalidArgument,
			"dimensionality must be positive, got %d", dim).WithComponent("functions")
	}
	return ctor(dim), nil
}

// Names lists the registered benchmarks in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders a function as name(dim), as used in log and series names.
func String(f optimization.ObjectiveFunction) string {
	return fmt.Sprintf("%s(%d)", f.Name(), f.Dim())
}
