package surrogate

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/kernels"
)

// LocallyWeighted fits a fresh polynomial around every query point using
// only its nearest training points, weighted by a kernel of their
// Mahalanobis distance relative to the farthest selected neighbor.
type LocallyWeighted struct {
	degree    int
	neighbors int
	kernel    kernels.Kernel

	// precision is the inverse covariance; nil means the identity.
	precision *mat.SymDense

	data     trainingSet
	features polynomialFeatures
	pool     *MatrixPool
	calls    int
	logger   *zap.Logger
}

// NewLocallyWeighted creates an untrained locally weighted polynomial
// regression surrogate. A nil kernel selects the biquadratic kernel.
func NewLocallyWeighted(degree, neighbors int, kernel kernels.Kernel, opts ...Option) (*LocallyWeighted, error) {
	if degree < 1 {
		return nil, invalid("locally_weighted", "degree must be positive, got %d", degree)
	}
	if neighbors < 2 {
		return nil, invalid("locally_weighted", "number of neighbors must be at least 2, got %d", neighbors)
	}
	if kernel == nil {
		kernel = kernels.Default()
	}
	o := buildOptions("locally_weighted", opts)
	return &LocallyWeighted{
		degree:    degree,
		neighbors: neighbors,
		kernel:    kernel,
		pool:      NewMatrixPool(),
		logger:    o.logger,
	}, nil
}

// Name returns locally_weighted_polynomial_regression_<degree>_degree.
func (s *LocallyWeighted) Name() string {
	return fmt.Sprintf("locally_weighted_polynomial_regression_%d_degree", s.degree)
}

// Ready reports whether Train succeeded at least once.
func (s *LocallyWeighted) Ready() bool { return s.data.xs != nil }

// Calls returns the number of successful predictions.
func (s *LocallyWeighted) Calls() int { return s.calls }

// MinTrainSize returns the number of neighbors.
func (s *LocallyWeighted) MinTrainSize(int) int { return s.neighbors }

// Hyperparameters returns the degree, neighbor count and kernel name.
func (s *LocallyWeighted) Hyperparameters() map[string]any {
	return map[string]any{
		"degree":        s.degree,
		"num_neighbors": s.neighbors,
		"kernel":        s.kernel.Name(),
	}
}

// SetCovariance replaces the distance metric. cov must be symmetric positive
// definite; it is copied, so the caller keeps ownership. Passing nil restores
// the Euclidean metric.
func (s *LocallyWeighted) SetCovariance(cov mat.Symmetric) error {
	if cov == nil {
		s.precision = nil
		return nil
	}
	n := cov.SymmetricDim()
	if s.data.dim != 0 && n != s.data.dim {
		return optimization.DimensionMismatch(s.data.dim, n).
			WithComponent("locally_weighted").WithOperation("SetCovariance")
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return optimization.NewError(optimization.ErrInvalidArgument, "covariance matrix is not positive definite").
			WithComponent("locally_weighted").WithOperation("SetCovariance")
	}
	precision := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(precision); err != nil {
		return optimization.WrapError(err, optimization.ErrNumericalFailure, "covariance inversion failed").
			WithComponent("locally_weighted").WithOperation("SetCovariance")
	}
	s.precision = precision
	return nil
}

// Train stores the training set. At least as many points as neighbors are
// required. Fitting is deferred to Predict.
func (s *LocallyWeighted) Train(train optimization.PointList) error {
	data, err := newTrainingSet("locally_weighted", train, s.neighbors)
	if err != nil {
		return err
	}
	if s.precision != nil && s.precision.SymmetricDim() != data.dim {
		return optimization.DimensionMismatch(s.precision.SymmetricDim(), data.dim).
			WithComponent("locally_weighted").WithOperation("Train")
	}
	if data.dim != s.data.dim || s.features.terms == nil {
		s.features = newPolynomialFeatures(data.dim, s.degree)
	}
	s.data = data
	s.logger.Debug("trained", zap.Int("points", len(data.xs)), zap.Int("dim", data.dim))
	return nil
}

// Predict fits a weighted polynomial on the neighborhood of p and evaluates it at p.
func (s *LocallyWeighted) Predict(p optimization.Point) (optimization.Point, error) {
	if err := s.data.checkQuery("locally_weighted", p); err != nil {
		return optimization.Point{}, err
	}

	neighbors := nearest(s.data.xs, p.X, s.neighbors, s.distance)
	weights := s.weights(neighbors)

	// The fit is done in coordinates centered on the query and scaled by the
	// neighborhood radius; the estimate is then the constant term.
	scale := 0.0
	for _, nb := range neighbors {
		for j, v := range s.data.xs[nb.index] {
			scale = math.Max(scale, math.Abs(v-p.X[j]))
		}
	}
	if scale == 0 {
		scale = 1
	}

	nf := s.features.Len()
	design := s.pool.GetDense(len(neighbors), nf)
	target := s.pool.GetVecDense(len(neighbors))
	defer s.pool.PutDense(design)
	defer s.pool.PutVecDense(target)

	local := make([]float64, s.data.dim)
	for i, nb := range neighbors {
		for j, v := range s.data.xs[nb.index] {
			local[j] = (v - p.X[j]) / scale
		}
		row := design.RawRowView(i)
		s.features.Expand(local, row)
		for j := range row {
			row[j] *= weights[i]
		}
		target.SetVec(i, weights[i]*s.data.ys[nb.index])
	}

	coef, err := leastSquares(design, target)
	if err != nil {
		if e, ok := optimization.IsOptimizationError(err); ok {
			e.WithComponent("locally_weighted").WithOperation("Predict")
		}
		return optimization.Point{}, err
	}

	s.calls++
	return estimate(p, coef.AtVec(0)), nil
}

// weights returns the square root of the kernel weight of every neighbor,
// which scales both design rows and targets. A zero bandwidth, or a kernel
// that zeroes every neighbor, falls back to uniform weights.
func (s *LocallyWeighted) weights(neighbors []neighbor) []float64 {
	w := make([]float64, len(neighbors))
	bandwidth := neighbors[len(neighbors)-1].dist
	if bandwidth == 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}

	total := 0.0
	for i, nb := range neighbors {
		w[i] = math.Sqrt(s.kernel.Eval(nb.dist / bandwidth))
		total += w[i]
	}
	if total == 0 {
		for i := range w {
			w[i] = 1
		}
	}
	return w
}

func (s *LocallyWeighted) distance(a, b []float64) float64 {
	if s.precision == nil {
		return euclidean(a, b)
	}
	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	v := mat.NewVecDense(len(diff), diff)
	return math.Sqrt(math.Max(0, mat.Inner(v, s.precision, v)))
}
