// Package metamodel implements the approximate ranking metamodel: a
// per-generation protocol that spends real objective evaluations only where
// a surrogate's ranking of the population is unstable.
package metamodel

import (
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
	"github.com/copyleftdev/optilab/internal/optimization/surrogate"
)

// ReturnMode selects which points EvaluateGeneration hands back.
type ReturnMode int

const (
	// ReturnAll returns every candidate in input order, carrying the real
	// value where one was computed and the surrogate estimate otherwise.
	ReturnAll ReturnMode = iota
	// ReturnElite returns the popsize best candidates, best first.
	ReturnElite
	// ReturnEvaluated returns the real evaluations of this generation in
	// evaluation order.
	ReturnEvaluated
)

// String returns the mode name.
func (m ReturnMode) String() string {
	switch m {
	case ReturnAll:
		return "all"
	case ReturnElite:
		return "elite"
	case ReturnEvaluated:
		return "evaluated"
	}
	return "unknown"
}

// GenerationStats summarizes one call to EvaluateGeneration.
type GenerationStats struct {
	Generation      int
	Bootstrap       bool
	RealEvaluations int
	Predictions     int
	Rounds          int
	Stable          bool
	NInit           int
	TrainSetSize    int
	BestY           float64
}

// Observer receives the statistics of every completed generation.
type Observer interface {
	ObserveGeneration(stats GenerationStats)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(GenerationStats)

// ObserveGeneration calls f(stats).
func (f ObserverFunc) ObserveGeneration(stats GenerationStats) { f(stats) }

// Option configures a Metamodel.
type Option func(*Metamodel)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Metamodel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReturnMode sets what EvaluateGeneration returns.
func WithReturnMode(mode ReturnMode) Option {
	return func(m *Metamodel) { m.returnMode = mode }
}

// WithObserver registers an observer called after every generation.
func WithObserver(o Observer) Option {
	return func(m *Metamodel) { m.observers = append(m.observers, o) }
}

// WithThresholds overrides the initial n_init and n_step.
func WithThresholds(nInit, nStep int) Option {
	return func(m *Metamodel) {
		m.nInit = nInit
		m.nStep = nStep
	}
}

// Metamodel is the approximate ranking metamodel of one optimization run.
// It owns the accumulated training set: every real evaluation it performs
// is appended and none is ever removed.
//
// A Metamodel is not safe for concurrent use.
type Metamodel struct {
	inputSize int
	popsize   int
	nInit     int
	nStep     int

	function  optimization.ObjectiveFunction
	surrogate surrogate.Surrogate

	trainSet   optimization.PointList
	generation int

	returnMode ReturnMode
	observers  []Observer
	logger     *zap.Logger
}

// New creates a metamodel for populations of inputSize candidates whose
// popsize best members form the elite set.
func New(inputSize, popsize int, function optimization.ObjectiveFunction, s surrogate.Surrogate, opts ...Option) (*Metamodel, error) {
	if inputSize < 1 {
		return nil, invalid("New", "input size must be positive, got %d", inputSize)
	}
	if popsize < 1 || popsize > inputSize {
		return nil, invalid("New", "popsize must be in [1, %d], got %d", inputSize, popsize)
	}
	if function == nil || s == nil {
		return nil, invalid("New", "objective function and surrogate are required")
	}

	m := &Metamodel{
		inputSize: inputSize,
		popsize:   popsize,
		nInit:     inputSize,
		nStep:     max(1, inputSize/10),
		function:  function,
		surrogate: s,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.nStep < 1 || m.nStep > inputSize {
		return nil, invalid("New", "n_step must be in [1, %d], got %d", inputSize, m.nStep)
	}
	if m.nInit < 1 || m.nInit > inputSize {
		return nil, invalid("New", "n_init must be in [1, %d], got %d", inputSize, m.nInit)
	}
	m.logger = m.logger.Named("metamodel")
	return m, nil
}

// EvaluateGeneration evaluates one population of exactly inputSize
// unevaluated candidates. While the training set is smaller than the
// bootstrap threshold every candidate is evaluated for real and the
// surrogate is not consulted.
func (m *Metamodel) EvaluateGeneration(candidates optimization.PointList) (optimization.PointList, error) {
	if err := m.checkCandidates(candidates); err != nil {
		return nil, err
	}

	m.generation++
	callsBefore := m.surrogate.Calls()

	if len(m.trainSet) < m.BootstrapSize() {
		out, err := m.bootstrap(candidates)
		if err != nil {
			return nil, err
		}
		m.observe(GenerationStats{
			Generation:      m.generation,
			Bootstrap:       true,
			RealEvaluations: len(out),
		})
		return m.result(out, out), nil
	}

	gen := &generation{
		candidates: candidates,
		real:       make(map[int]optimization.Point, m.inputSize),
	}

	// Reference elite set from the current model.
	if err := m.predict(gen); err != nil {
		return nil, err
	}
	reference := gen.elite(m.popsize)

	if _, err := m.evaluateTop(gen, m.nInit); err != nil {
		return nil, err
	}

	maxRounds := (m.inputSize - m.nInit) / m.nStep
	rounds, stable := 0, false
	for rounds < maxRounds {
		rounds++
		if err := m.predict(gen); err != nil {
			return nil, err
		}
		elite := gen.elite(m.popsize)
		if sameElite(elite, reference) {
			stable = true
			break
		}
		added, err := m.evaluateTop(gen, m.nStep)
		if err != nil {
			return nil, err
		}
		reference = elite
		if added == 0 {
			break
		}
	}

	prevNInit := m.nInit
	m.adapt(rounds)

	m.logger.Debug("generation evaluated",
		zap.Int("generation", m.generation),
		zap.Int("real_evaluations", len(gen.order)),
		zap.Int("rounds", rounds),
		zap.Bool("stable", stable),
		zap.Int("n_init_before", prevNInit),
		zap.Int("n_init", m.nInit))

	m.observe(GenerationStats{
		Generation:      m.generation,
		RealEvaluations: len(gen.order),
		Predictions:     m.surrogate.Calls() - callsBefore,
		Rounds:          rounds,
		Stable:          stable,
	})

	return m.result(gen.merged(), gen.evaluatedInOrder()), nil
}

// UpdateCovariance forwards cov to the surrogate when it uses a Mahalanobis
// metric; other surrogates ignore it. The matrix is copied by the surrogate.
func (m *Metamodel) UpdateCovariance(cov mat.Symmetric) error {
	if ca, ok := m.surrogate.(surrogate.CovarianceAware); ok {
		return ca.SetCovariance(cov)
	}
	return nil
}

// BootstrapSize is the training set size from which the surrogate is used.
func (m *Metamodel) BootstrapSize() int {
	return max(m.inputSize, m.surrogate.MinTrainSize(m.function.Dim()))
}

// Log returns a copy of every real evaluation performed so far, in order.
func (m *Metamodel) Log() optimization.PointList { return m.trainSet.Clone() }

// TrainSet returns a copy of the accumulated training set.
func (m *Metamodel) TrainSet() optimization.PointList { return m.trainSet.Clone() }

// Evaluations returns the number of real evaluations performed so far.
func (m *Metamodel) Evaluations() int { return len(m.trainSet) }

// BestY returns the best real value so far, +Inf before any evaluation.
func (m *Metamodel) BestY() float64 { return m.trainSet.BestY() }

// NInit returns the current number of up-front real evaluations.
func (m *Metamodel) NInit() int { return m.nInit }

// NStep returns the refinement step size.
func (m *Metamodel) NStep() int { return m.nStep }

// Generation returns the number of completed calls to EvaluateGeneration.
func (m *Metamodel) Generation() int { return m.generation }

// InputSize returns the expected population size.
func (m *Metamodel) InputSize() int { return m.inputSize }

// Popsize returns the elite set size.
func (m *Metamodel) Popsize() int { return m.popsize }

// Surrogate returns the surrogate model.
func (m *Metamodel) Surrogate() surrogate.Surrogate { return m.surrogate }

func (m *Metamodel) checkCandidates(candidates optimization.PointList) error {
	if len(candidates) != m.inputSize {
		return invalid("EvaluateGeneration", "expected %d candidates, got %d", m.inputSize, len(candidates))
	}
	dim := m.function.Dim()
	for i, c := range candidates {
		if len(c.X) != dim {
			return optimization.DimensionMismatch(dim, len(c.X)).
				WithComponent("metamodel").WithOperation("EvaluateGeneration")
		}
		if c.IsEvaluated {
			return invalid("EvaluateGeneration", "candidate %d is already evaluated", i)
		}
	}
	return nil
}

func (m *Metamodel) bootstrap(candidates optimization.PointList) (optimization.PointList, error) {
	out := make(optimization.PointList, len(candidates))
	for i, c := range candidates {
		p, err := m.evaluate(c)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (m *Metamodel) evaluate(c optimization.Point) (optimization.Point, error) {
	p, err := optimization.EvaluatePoint(m.function, c)
	if err != nil {
		return optimization.Point{}, err
	}
	m.trainSet = append(m.trainSet, p)
	return p, nil
}

// predict retrains the surrogate on the full training set and refreshes the
// estimates of every candidate not yet evaluated this generation.
func (m *Metamodel) predict(gen *generation) error {
	if err := m.surrogate.Train(m.trainSet); err != nil {
		return err
	}
	gen.values = make(optimization.PointList, len(gen.candidates))
	for i, c := range gen.candidates {
		if p, ok := gen.real[i]; ok {
			gen.values[i] = p
			continue
		}
		p, err := m.surrogate.Predict(c)
		if err != nil {
			return err
		}
		gen.values[i] = p
	}
	gen.rank()
	return nil
}

// evaluateTop evaluates up to n of the best-ranked candidates that have no
// real value yet and returns how many were evaluated.
func (m *Metamodel) evaluateTop(gen *generation, n int) (int, error) {
	added := 0
	for _, i := range gen.ranking {
		if added == n {
			break
		}
		if _, ok := gen.real[i]; ok {
			continue
		}
		p, err := m.evaluate(gen.candidates[i])
		if err != nil {
			return added, err
		}
		gen.real[i] = p
		gen.order = append(gen.order, i)
		added++
	}
	return added, nil
}

// adapt moves n_init towards fewer real evaluations after a quickly stable
// generation and towards more after a slow one.
func (m *Metamodel) adapt(rounds int) {
	upper := max(m.nStep, m.inputSize-m.nStep)
	if rounds <= 2 {
		m.nInit = max(m.nStep, m.nInit-m.nStep)
	} else {
		m.nInit = min(upper, m.nInit+m.nStep)
	}
}

func (m *Metamodel) result(all, evaluated optimization.PointList) optimization.PointList {
	switch m.returnMode {
	case ReturnElite:
		return all.Rank(false)[:m.popsize]
	case ReturnEvaluated:
		return evaluated
	default:
		return all
	}
}

func (m *Metamodel) observe(stats GenerationStats) {
	stats.NInit = m.nInit
	stats.TrainSetSize = len(m.trainSet)
	stats.BestY = m.trainSet.BestY()
	for _, o := range m.observers {
		o.ObserveGeneration(stats)
	}
}

// generation holds the per-call bookkeeping of the refinement protocol.
type generation struct {
	candidates optimization.PointList
	// values holds the latest value of every candidate, real or estimated.
	values optimization.PointList
	// ranking lists candidate indices by ascending value.
	ranking []int
	// real maps candidate index to its real evaluation.
	real map[int]optimization.Point
	// order lists evaluated candidate indices in evaluation order.
	order []int
}

func (g *generation) rank() {
	g.ranking = make([]int, len(g.values))
	for i := range g.ranking {
		g.ranking[i] = i
	}
	sort.SliceStable(g.ranking, func(a, b int) bool {
		return g.values[g.ranking[a]].Y < g.values[g.ranking[b]].Y
	})
}

func (g *generation) elite(popsize int) optimization.PointList {
	out := make(optimization.PointList, popsize)
	for i, idx := range g.ranking[:popsize] {
		out[i] = g.values[idx]
	}
	return out
}

// merged returns the candidates in input order, real values overriding estimates.
func (g *generation) merged() optimization.PointList {
	out := make(optimization.PointList, len(g.candidates))
	for i := range g.candidates {
		if p, ok := g.real[i]; ok {
			out[i] = p
		} else {
			out[i] = g.values[i]
		}
	}
	return out
}

func (g *generation) evaluatedInOrder() optimization.PointList {
	out := make(optimization.PointList, len(g.order))
	for i, idx := range g.order {
		out[i] = g.real[idx]
	}
	return out
}

// sameElite compares two elite sets by coordinate membership, ignoring order.
func sameElite(a, b optimization.PointList) bool {
	if len(a) != len(b) {
		return false
	}
	for _, p := range a {
		if !b.Contains(p) {
			return false
		}
	}
	for _, p := range b {
		if !a.Contains(p) {
			return false
		}
	}
	return true
}

func invalid(op, format string, args ...any) error {
	return optimization.NewErrorf(optimization.ErrInvalidArgument, format, args...).
		WithComponent("metamodel").WithOperation(op)
}
