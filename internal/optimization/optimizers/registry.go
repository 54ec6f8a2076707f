package optimizers

import (
	"strings"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Config holds the hyperparameters understood by ByName. Fields that a
// method does not use are ignored.
type Config struct {
	PopulationSize int
	Sigma0         float64
	NumNeighbors   int
	Degree         int
}

// Names lists the available methods.
func Names() []string {
	return []string{"cma-es", "knn-cma-es", "lmm-cma-es", "poly-cma-es", "nelder-mead"}
}

// ByName builds the named optimizer.
func ByName(name string, cfg Config, opts ...Option) (optimization.Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cma-es":
		return NewCMAES(cfg.PopulationSize, cfg.Sigma0, opts...)
	case "knn-cma-es":
		return NewKNNCMAES(cfg.PopulationSize, cfg.Sigma0, cfg.NumNeighbors, opts...)
	case "lmm-cma-es":
		return NewLMMCMAES(cfg.PopulationSize, cfg.Sigma0, cfg.Degree, opts...)
	case "poly-cma-es":
		return NewPolyCMAES(cfg.PopulationSize, cfg.Sigma0, cfg.Degree, opts...)
	case "nelder-mead":
		return NewNelderMead(0), nil
	}
	return nil, optimization.NewErrorf(optimization.ErrInvalidArgument,
		"unknown method %q, expected one of %v", name, Names()).WithComponent("optimizers")
}
