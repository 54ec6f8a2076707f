// Package surrogate provides trainable approximations of an objective
// function: k-nearest-neighbor regression, global polynomial regression and
// locally weighted polynomial regression.
package surrogate

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/kernels"
)

// Surrogate is a trainable approximation of an objective function.
//
// A Surrogate is owned by a single run and is not safe for concurrent use.
type Surrogate interface {
	// Name identifies the model and its main hyperparameter.
	Name() string

	// Train refits the model on the evaluated points of train. On error the
	// previous model, if any, is kept.
	Train(train optimization.PointList) error

	// Predict returns a copy of p carrying the estimated value with
	// IsEvaluated unset. It fails with ErrNotReady before a successful Train
	// and with ErrDimensionMismatch for a query of the wrong length.
	Predict(p optimization.Point) (optimization.Point, error)

	// Ready reports whether the model has been trained.
	Ready() bool

	// Calls returns the number of successful predictions.
	Calls() int

	// MinTrainSize is the smallest training set Train accepts for points
	// of dimensionality dim.
	MinTrainSize(dim int) int

	// Hyperparameters describes the model for result metadata.
	Hyperparameters() map[string]any
}

// CovarianceAware is implemented by surrogates whose distance metric can be
// replaced between predictions without retraining.
type CovarianceAware interface {
	// SetCovariance copies cov and uses its inverse as the Mahalanobis metric.
	SetCovariance(cov mat.Symmetric) error
}

// PredictAll predicts every point of list in order.
func PredictAll(s Surrogate, list optimization.PointList) (optimization.PointList, error) {
	out := make(optimization.PointList, len(list))
	for i, p := range list {
		q, err := s.Predict(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// Kind enumerates the available surrogate models.
type Kind string

const (
	// KindKNN is distance-weighted k-nearest-neighbor regression.
	KindKNN Kind = "knn"
	// KindPolynomial is a global least squares polynomial fit.
	KindPolynomial Kind = "polynomial"
	// KindLocallyWeighted is a per-query kernel weighted polynomial fit.
	KindLocallyWeighted Kind = "locally_weighted"
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "knn":
		return KindKNN, nil
	case "polynomial", "poly":
		return KindPolynomial, nil
	case "locally_weighted", "lwpr", "lwr":
		return KindLocallyWeighted, nil
	}
	return "", optimization.NewErrorf(optimization.ErrInvalidArgument, "unknown surrogate kind %q", s).
		WithComponent("surrogate")
}

// Config selects and parameterizes a surrogate.
type Config struct {
	Kind Kind
	// NumNeighbors is used by KindKNN and KindLocallyWeighted.
	NumNeighbors int
	// Degree is used by KindPolynomial and KindLocallyWeighted.
	Degree int
	// Kernel weights neighbors of KindLocallyWeighted. Nil selects the default.
	Kernel kernels.Kernel
	// Covariance is the initial metric of KindLocallyWeighted. Nil means Euclidean.
	Covariance mat.Symmetric
}

// Option configures a surrogate.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for training diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named(name)
	return o
}

// New builds the surrogate selected by cfg.Kind.
func New(cfg Config, opts ...Option) (Surrogate, error) {
	switch cfg.Kind {
	case KindKNN:
		return NewKNN(cfg.NumNeighbors, opts...)
	case KindPolynomial:
		return NewPolynomial(cfg.Degree, opts...)
	case KindLocallyWeighted:
		lw, err := NewLocallyWeighted(cfg.Degree, cfg.NumNeighbors, cfg.Kernel, opts...)
		if err != nil {
			return nil, err
		}
		if cfg.Covariance != nil {
			if err := lw.SetCovariance(cfg.Covariance); err != nil {
				return nil, err
			}
		}
		return lw, nil
	default:
		return nil, optimization.NewErrorf(optimization.ErrInvalidArgument, "unknown surrogate kind %q", cfg.Kind).
			WithComponent("surrogate").WithOperation("New")
	}
}

// trainingSet is the validated, copied form of a training PointList.
type trainingSet struct {
	xs  [][]float64
	ys  []float64
	dim int
}

func newTrainingSet(component string, train optimization.PointList, minSize int) (trainingSet, error) {
	if len(train) == 0 {
		return trainingSet{}, optimization.NewError(optimization.ErrInsufficientTrainingData, "empty training set").
			WithComponent(component).WithOperation("Train")
	}
	if err := train.Validate(); err != nil {
		if e, ok := optimization.IsOptimizationError(err); ok {
			e.WithComponent(component).WithOperation("Train")
		}
		return trainingSet{}, err
	}
	if len(train) < minSize {
		return trainingSet{}, optimization.NewErrorf(optimization.ErrInsufficientTrainingData,
			"need at least %d points, got %d", minSize, len(train)).
			WithComponent(component).WithOperation("Train")
	}

	ts := trainingSet{
		xs:  make([][]float64, len(train)),
		ys:  make([]float64, len(train)),
		dim: train.Dim(),
	}
	for i, p := range train {
		if !p.HasY {
			return trainingSet{}, optimization.NewErrorf(optimization.ErrInvalidArgument,
				"training point %d has no value", i).WithComponent(component).WithOperation("Train")
		}
		ts.xs[i] = slices.Clone(p.X)
		ts.ys[i] = p.Y
	}
	return ts, nil
}

func (ts *trainingSet) checkQuery(component string, p optimization.Point) error {
	if ts.xs == nil {
		return optimization.NewError(optimization.ErrNotReady, "predict called before train").
			WithComponent(component).WithOperation("Predict")
	}
	if len(p.X) != ts.dim {
		return optimization.DimensionMismatch(ts.dim, len(p.X)).
			WithComponent(component).WithOperation("Predict")
	}
	return nil
}

func estimate(p optimization.Point, y float64) optimization.Point {
	return optimization.Point{X: p.X, Y: y, HasY: true}
}

func invalid(component, format string, args ...any) error {
	return optimization.NewError(optimization.ErrInvalidArgument, fmt.Sprintf(format, args...)).
		WithComponent(component).WithOperation("New")
}
