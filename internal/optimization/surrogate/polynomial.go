package surrogate

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Polynomial fits a single polynomial with all interaction terms up to the
// configured degree to the whole training set by ordinary least squares.
type Polynomial struct {
	degree   int
	data     trainingSet
	features polynomialFeatures
	coef     *mat.VecDense
	calls    int
	logger   *zap.Logger
}

// NewPolynomial creates an untrained polynomial regression surrogate.
func NewPolynomial(degree int, opts ...Option) (*Polynomial, error) {
	if degree < 1 {
		return nil, invalid("polynomial", "degree must be positive, got %d", degree)
	}
	o := buildOptions("polynomial", opts)
	return &Polynomial{degree: degree, logger: o.logger}, nil
}

// Name returns polynomial_regression_<degree>_degree.
func (s *Polynomial) Name() string {
	return fmt.Sprintf("polynomial_regression_%d_degree", s.degree)
}

// Ready reports whether Train succeeded at least once.
func (s *Polynomial) Ready() bool { return s.coef != nil }

// Calls returns the number of successful predictions.
func (s *Polynomial) Calls() int { return s.calls }

// MinTrainSize returns the number of polynomial terms for dim variables.
func (s *Polynomial) MinTrainSize(dim int) int {
	return numPolynomialFeatures(dim, s.degree)
}

// Hyperparameters returns the degree.
func (s *Polynomial) Hyperparameters() map[string]any {
	return map[string]any{"degree": s.degree}
}

// Coefficients returns a copy of the fitted coefficients in feature order:
// bias, linear terms, then higher degree monomials.
func (s *Polynomial) Coefficients() []float64 {
	if s.coef == nil {
		return nil
	}
	return mat.Col(nil, 0, s.coef)
}

// Train fits the coefficients. At least as many points as polynomial terms
// are required.
func (s *Polynomial) Train(train optimization.PointList) error {
	dim := train.Dim()
	data, err := newTrainingSet("polynomial", train, numPolynomialFeatures(dim, s.degree))
	if err != nil {
		return err
	}

	features := newPolynomialFeatures(data.dim, s.degree)
	design := mat.NewDense(len(data.xs), features.Len(), nil)
	for i, x := range data.xs {
		features.Expand(x, design.RawRowView(i))
	}

	coef, err := leastSquares(design, mat.NewVecDense(len(data.ys), data.ys))
	if err != nil {
		if e, ok := optimization.IsOptimizationError(err); ok {
			e.WithComponent("polynomial")
		}
		return err
	}

	s.data, s.features, s.coef = data, features, coef
	s.logger.Debug("trained",
		zap.Int("points", len(data.xs)),
		zap.Int("dim", data.dim),
		zap.Int("terms", features.Len()))
	return nil
}

// Predict evaluates the fitted polynomial at p.
func (s *Polynomial) Predict(p optimization.Point) (optimization.Point, error) {
	if s.coef == nil {
		return optimization.Point{}, optimization.NewError(optimization.ErrNotReady, "predict called before train").
			WithComponent("polynomial").WithOperation("Predict")
	}
	if err := s.data.checkQuery("polynomial", p); err != nil {
		return optimization.Point{}, err
	}

	row := make([]float64, s.features.Len())
	s.features.Expand(p.X, row)
	y := mat.Dot(mat.NewVecDense(len(row), row), s.coef)

	s.calls++
	return estimate(p, y), nil
}
