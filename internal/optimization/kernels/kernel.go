package kernels

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kernel maps a normalized distance u = d / bandwidth to a non-negative
// weight. Kernels with compact support return 0 for |u| >= 1, so the
// neighbor defining the bandwidth never contributes.
type Kernel interface {
	// Eval computes the weight for the normalized distance u
	Eval(u float64) float64

	// Name returns the registry name of the kernel
	Name() string
}

// Biquadratic implements (1 - u^2)^2 on |u| < 1.
type Biquadratic struct{}

// Eval computes the biquadratic weight
func (Biquadratic) Eval(u float64) float64 {
	if math.Abs(u) >= 1 {
		return 0
	}
	v := 1 - u*u
	return v * v
}

// Name returns "biquadratic"
func (Biquadratic) Name() string { return "biquadratic" }

// Tricube implements (1 - |u|^3)^3 on |u| < 1.
type Tricube struct{}

// Eval computes the tricube weight
func (Tricube) Eval(u float64) float64 {
	a := math.Abs(u)
	if a >= 1 {
		return 0
	}
	v := 1 - a*a*a
	return v * v * v
}

// Name returns "tricube"
func (Tricube) Name() string { return "tricube" }

// Epanechnikov implements 1 - u^2 on |u| < 1.
type Epanechnikov struct{}

// Eval computes the Epanechnikov weight
func (Epanechnikov) Eval(u float64) float64 {
	if math.Abs(u) >= 1 {
		return 0
	}
	return 1 - u*u
}

// Name returns "epanechnikov"
func (Epanechnikov) Name() string { return "epanechnikov" }

// Gaussian implements exp(-u^2 / 2). It has unbounded support, so the
// farthest neighbor keeps a positive weight.
type Gaussian struct{}

// Eval computes the Gaussian weight
func (Gaussian) Eval(u float64) float64 {
	return math.Exp(-0.5 * u * u)
}

// Name returns "gaussian"
func (Gaussian) Name() string { return "gaussian" }

// Default returns the kernel used when none is configured.
func Default() Kernel {
	return Biquadratic{}
}

var registry = map[string]Kernel{
	"biquadratic":  Biquadratic{},
	"tricube":      Tricube{},
	"epanechnikov": Epanechnikov{},
	"gaussian":     Gaussian{},
}

// ByName looks up a kernel. An empty name selects the default.
func ByName(name string) (Kernel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default(), nil
	}
	k, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel %q, expected one of %v", name, Names())
	}
	return k, nil
}

// Names lists the registered kernels in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
