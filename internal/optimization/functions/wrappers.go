package functions

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Counting meters the real evaluations of the wrapped function. Each run
// owns its own Counting instance, so counters are never shared across runs.
type Counting struct {
	optimization.ObjectiveFunction
	calls atomic.Int64
}

// NewCounting wraps f with a call counter starting at zero.
func NewCounting(f optimization.ObjectiveFunction) *Counting {
	return &Counting{ObjectiveFunction: f}
}

// Evaluate forwards to the wrapped function and counts successful calls.
func (c *Counting) Evaluate(x []float64) (float64, error) {
	y, err := c.ObjectiveFunction.Evaluate(x)
	if err != nil {
		return 0, err
	}
	c.calls.Add(1)
	return y, nil
}

// Calls returns the number of successful evaluations so far.
func (c *Counting) Calls() int {
	return int(c.calls.Load())
}

// Noisy multiplies the wrapped function's value by (1 + noise * N(0, 1)).
type Noisy struct {
	f     optimization.ObjectiveFunction
	noise float64

	mu     sync.Mutex
	normal distuv.Normal
}

// NewNoisy wraps f with multiplicative Gaussian noise drawn from a source
// seeded with seed.
func NewNoisy(f optimization.ObjectiveFunction, noise float64, seed uint64) *Noisy {
	return &Noisy{
		f:     f,
		noise: noise,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// Name returns noisy_<name>_<noise>.
func (n *Noisy) Name() string {
	return fmt.Sprintf("noisy_%s_%g", n.f.Name(), n.noise)
}

// Dim returns the wrapped function's dimensionality.
func (n *Noisy) Dim() int {
	return n.f.Dim()
}

// Noise returns the relative noise level.
func (n *Noisy) Noise() float64 {
	return n.noise
}

// Evaluate computes the noisy value of f(x).
func (n *Noisy) Evaluate(x []float64) (float64, error) {
	y, err := n.f.Evaluate(x)
	if err != nil {
		return 0, err
	}
	n.mu.Lock()
	z := n.normal.Rand()
	n.mu.Unlock()
	return y * (1 + n.noise*z), nil
}
