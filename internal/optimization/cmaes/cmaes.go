// Package cmaes implements the (mu/mu_w, lambda) covariance matrix
// adaptation evolution strategy behind an ask/tell interface.
package cmaes

import (
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
)

const (
	// tolX stops the search once sigma times the largest axis falls below it.
	tolX = 1e-12
	// maxCondition stops the search once C becomes this ill-conditioned.
	maxCondition = 1e14
)

// DefaultPopulationSize returns 4 + floor(3 ln n).
func DefaultPopulationSize(dim int) int {
	return 4 + int(math.Floor(3*math.Log(float64(dim))))
}

// Config holds the initial state of a Strategy.
type Config struct {
	// Mean is the initial distribution mean x0.
	Mean []float64
	// Sigma is the initial step size.
	Sigma float64
	// PopulationSize is lambda. Zero selects DefaultPopulationSize.
	PopulationSize int
	// Bounds, when set, are applied to every asked candidate.
	Bounds *optimization.Bounds
	// BoundsMode defaults to BoundsReflect.
	BoundsMode optimization.BoundsMode
	// Seed initializes the sampling source.
	Seed uint64
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Strategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Strategy is a CMA-ES instance. It is not safe for concurrent use.
type Strategy struct {
	dim    int
	lambda int
	mu     int

	weights []float64
	mueff   float64
	cc      float64
	cs      float64
	c1      float64
	cmu     float64
	damps   float64
	chiN    float64

	mean  []float64
	sigma float64
	pc    []float64
	ps    []float64
	c     *mat.SymDense
	b     *mat.Dense
	d     []float64

	bounds     *optimization.Bounds
	boundsMode optimization.BoundsMode

	generation  int
	evaluations int
	rng         *rand.Rand
	logger      *zap.Logger
}

// New creates a strategy from cfg.
func New(cfg Config, opts ...Option) (*Strategy, error) {
	n := len(cfg.Mean)
	if n < 1 {
		return nil, invalid("New", "initial mean must not be empty")
	}
	if !(cfg.Sigma > 0) || math.IsInf(cfg.Sigma, 0) {
		return nil, invalid("New", "sigma must be positive, got %v", cfg.Sigma)
	}
	lambda := cfg.PopulationSize
	if lambda == 0 {
		lambda = DefaultPopulationSize(n)
	}
	if lambda < 2 {
		return nil, invalid("New", "population size must be at least 2, got %d", lambda)
	}
	mode := cfg.BoundsMode
	if mode == "" {
		mode = optimization.BoundsReflect
	}
	if _, err := optimization.ParseBoundsMode(string(mode)); err != nil {
		return nil, err
	}
	if cfg.Bounds != nil && !cfg.Bounds.IsValid() {
		return nil, invalid("New", "degenerate bounds [%v, %v]", cfg.Bounds.Lower, cfg.Bounds.Upper)
	}

	s := &Strategy{
		dim:        n,
		lambda:     lambda,
		mu:         lambda / 2,
		mean:       append([]float64(nil), cfg.Mean...),
		sigma:      cfg.Sigma,
		pc:         make([]float64, n),
		ps:         make([]float64, n),
		c:          identitySym(n),
		b:          identityDense(n),
		d:          ones(n),
		bounds:     cfg.Bounds,
		boundsMode: mode,
		rng:        rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("cmaes")
	s.initParameters()
	return s, nil
}

func (s *Strategy) initParameters() {
	n := float64(s.dim)
	s.weights = make([]float64, s.mu)
	for i := range s.weights {
		s.weights[i] = math.Log(float64(s.lambda+1)/2) - math.Log(float64(i+1))
	}
	floats.Scale(1/floats.Sum(s.weights), s.weights)
	s.mueff = 1 / floats.Dot(s.weights, s.weights)

	s.cc = (4 + s.mueff/n) / (n + 4 + 2*s.mueff/n)
	s.cs = (s.mueff + 2) / (n + s.mueff + 5)
	s.c1 = 2 / ((n+1.3)*(n+1.3) + s.mueff)
	s.cmu = math.Min(1-s.c1, 2*(s.mueff-2+1/s.mueff)/((n+2)*(n+2)+s.mueff))
	s.damps = 1 + 2*math.Max(0, math.Sqrt((s.mueff-1)/(n+1))-1) + s.cs
	s.chiN = math.Sqrt(n) * (1 - 1/(4*n) + 1/(21*n*n))
}

// Ask samples n candidates from N(mean, sigma^2 C). n must be at least mu.
func (s *Strategy) Ask(n int) (optimization.PointList, error) {
	if n < s.mu {
		return nil, invalid("Ask", "need at least %d candidates, got %d", s.mu, n)
	}
	out := make(optimization.PointList, n)
	z := make([]float64, s.dim)
	bdz := mat.NewVecDense(s.dim, nil)
	for k := range out {
		for i := range z {
			z[i] = s.d[i] * s.rng.NormFloat64()
		}
		bdz.MulVec(s.b, mat.NewVecDense(s.dim, z))

		x := make([]float64, s.dim)
		for i := range x {
			x[i] = s.mean[i] + s.sigma*bdz.AtVec(i)
		}
		p := optimization.Point{X: x}
		if s.bounds != nil {
			var err error
			if p, err = s.bounds.Handle(p, s.boundsMode); err != nil {
				return nil, err
			}
		}
		out[k] = p
	}
	return out, nil
}

// Tell updates the distribution from valued candidates. The best mu points
// by value drive the update, so the list may be a subset of the last Ask as
// long as it holds at least mu points.
func (s *Strategy) Tell(points optimization.PointList) error {
	if len(points) < s.mu {
		return invalid("Tell", "need at least %d points, got %d", s.mu, len(points))
	}
	for _, p := range points {
		if len(p.X) != s.dim {
			return optimization.DimensionMismatch(s.dim, len(p.X)).WithComponent("cmaes").WithOperation("Tell")
		}
		if !p.HasY {
			return invalid("Tell", "point without value")
		}
	}

	n := float64(s.dim)
	elite := points.Rank(false)[:s.mu]
	s.generation++
	s.evaluations += len(points)

	old := append([]float64(nil), s.mean...)
	for i := range s.mean {
		s.mean[i] = 0
		for k, p := range elite {
			s.mean[i] += s.weights[k] * p.X[i]
		}
	}

	// Steps of the selected points relative to the old mean.
	steps := make([][]float64, s.mu)
	for k, p := range elite {
		steps[k] = make([]float64, s.dim)
		for i := range steps[k] {
			steps[k][i] = (p.X[i] - old[i]) / s.sigma
		}
	}
	y := make([]float64, s.dim)
	for i := range y {
		y[i] = (s.mean[i] - old[i]) / s.sigma
	}

	// ps <- (1 - cs) ps + sqrt(cs (2 - cs) mueff) C^-1/2 y
	invSqrt := s.invSqrtC(y)
	csn := math.Sqrt(s.cs * (2 - s.cs) * s.mueff)
	for i := range s.ps {
		s.ps[i] = (1-s.cs)*s.ps[i] + csn*invSqrt[i]
	}
	psNorm := floats.Norm(s.ps, 2)

	hsig := 0.0
	if psNorm/math.Sqrt(1-math.Pow(1-s.cs, 2*float64(s.generation)))/s.chiN < 1.4+2/(n+1) {
		hsig = 1
	}

	ccn := math.Sqrt(s.cc * (2 - s.cc) * s.mueff)
	for i := range s.pc {
		s.pc[i] = (1-s.cc)*s.pc[i] + hsig*ccn*y[i]
	}

	decay := 1 - s.c1 - s.cmu + (1-hsig)*s.c1*s.cc*(2-s.cc)
	s.c.ScaleSym(decay, s.c)
	s.c.SymRankOne(s.c, s.c1, mat.NewVecDense(s.dim, s.pc))
	for k, step := range steps {
		s.c.SymRankOne(s.c, s.cmu*s.weights[k], mat.NewVecDense(s.dim, step))
	}

	s.sigma *= math.Exp((s.cs / s.damps) * (psNorm/s.chiN - 1))

	if err := s.decompose(); err != nil {
		return err
	}

	s.logger.Debug("tell",
		zap.Int("generation", s.generation),
		zap.Float64("sigma", s.sigma),
		zap.Float64("best", elite[0].Y))
	return nil
}

// ShouldStop reports whether the distribution has collapsed, become
// ill-conditioned or numerically invalid.
func (s *Strategy) ShouldStop() bool {
	if math.IsNaN(s.sigma) || math.IsInf(s.sigma, 0) {
		return true
	}
	for _, v := range s.mean {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	maxD, minD := floats.Max(s.d), floats.Min(s.d)
	if s.sigma*maxD < tolX {
		return true
	}
	return minD <= 0 || (maxD*maxD)/(minD*minD) > maxCondition
}

// Covariance returns a copy of the covariance matrix C.
func (s *Strategy) Covariance() *mat.SymDense {
	return mat.NewSymDense(s.dim, append([]float64(nil), s.c.RawSymmetric().Data...))
}

// Sigma returns the current step size.
func (s *Strategy) Sigma() float64 { return s.sigma }

// Mean returns a copy of the distribution mean.
func (s *Strategy) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Generation returns the number of completed Tell calls.
func (s *Strategy) Generation() int { return s.generation }

// Evaluations returns the number of points told so far.
func (s *Strategy) Evaluations() int { return s.evaluations }

// PopulationSize returns lambda.
func (s *Strategy) PopulationSize() int { return s.lambda }

// Mu returns the number of parents.
func (s *Strategy) Mu() int { return s.mu }

// decompose refreshes B and D from C = B diag(D^2) B^T.
func (s *Strategy) decompose() error {
	var eig mat.EigenSym
	if ok := eig.Factorize(s.c, true); !ok {
		return optimization.NewError(optimization.ErrNumericalFailure, "eigendecomposition of C failed").
			WithComponent("cmaes").WithOperation("Tell")
	}
	values := eig.Values(nil)
	for i, v := range values {
		s.d[i] = math.Sqrt(math.Max(v, 0))
	}
	eig.VectorsTo(s.b)
	return nil
}

// invSqrtC computes B diag(1/D) B^T v.
func (s *Strategy) invSqrtC(v []float64) []float64 {
	var bt mat.VecDense
	bt.MulVec(s.b.T(), mat.NewVecDense(s.dim, v))
	for i := 0; i < s.dim; i++ {
		if s.d[i] > 0 {
			bt.SetVec(i, bt.AtVec(i)/s.d[i])
		} else {
			bt.SetVec(i, 0)
		}
	}
	var out mat.VecDense
	out.MulVec(s.b, &bt)
	return mat.Col(nil, 0, &out)
}

func identitySym(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

func identityDense(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func invalid(op, format string, args ...any) error {
	return optimization.NewErrorf(optimization.ErrInvalidArgument, format, args...).
		WithComponent("cmaes").WithOperation(op)
}
