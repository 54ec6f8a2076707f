package optimization

import (
	"math"
	"slices"
	"sort"
)

// Point is a candidate solution in the search space.
//
// Coordinates are treated as immutable once a Point is built: every
// operation that changes X returns a new Point with a fresh slice.
type Point struct {
	// X is the coordinate vector.
	X []float64
	// Y is the function value. Only meaningful when HasY is set.
	Y float64
	// HasY reports whether Y holds a value.
	HasY bool
	// IsEvaluated is set only when Y came from the real objective function.
	IsEvaluated bool
}

// NewPoint returns an unevaluated point at x.
func NewPoint(x []float64) Point {
	return Point{X: slices.Clone(x)}
}

// EvaluatedPoint returns a point whose value came from the real objective function.
func EvaluatedPoint(x []float64, y float64) Point {
	return Point{X: slices.Clone(x), Y: y, HasY: true, IsEvaluated: true}
}

// EstimatedPoint returns a point whose value came from a surrogate.
func EstimatedPoint(x []float64, y float64) Point {
	return Point{X: slices.Clone(x), Y: y, HasY: true}
}

// Dim returns the dimensionality of the point.
func (p Point) Dim() int {
	return len(p.X)
}

// Equal reports whether two points share the same coordinates.
// Values and evaluation flags are ignored.
func (p Point) Equal(other Point) bool {
	return slices.Equal(p.X, other.X)
}

// Clone returns a deep copy of the point.
func (p Point) Clone() Point {
	p.X = slices.Clone(p.X)
	return p
}

// PointList is an ordered collection of points sharing one dimensionality.
// It serves both as a population batch and as a growing training set or log.
type PointList []Point

// FromVectors builds a list of unevaluated points.
func FromVectors(xs [][]float64) PointList {
	list := make(PointList, len(xs))
	for i, x := range xs {
		list[i] = NewPoint(x)
	}
	return list
}

// Len returns the number of points in the list.
func (l PointList) Len() int {
	return len(l)
}

// Dim returns the shared dimensionality, or 0 for an empty list.
func (l PointList) Dim() int {
	if len(l) == 0 {
		return 0
	}
	return len(l[0].X)
}

// Validate checks that all points share one dimensionality.
func (l PointList) Validate() error {
	if len(l) == 0 {
		return nil
	}
	dim := len(l[0].X)
	for _, p := range l[1:] {
		if len(p.X) != dim {
			return DimensionMismatch(dim, len(p.X)).WithComponent("point_list").WithOperation("Validate")
		}
	}
	return nil
}

// Add appends p, failing if its dimensionality differs from the list's.
func (l *PointList) Add(p Point) error {
	if len(*l) > 0 && len(p.X) != l.Dim() {
		return DimensionMismatch(l.Dim(), len(p.X)).WithComponent("point_list").WithOperation("Add")
	}
	*l = append(*l, p)
	return nil
}

// Extend appends every point of other. Nothing is appended on error.
func (l *PointList) Extend(other PointList) error {
	if len(other) == 0 {
		return nil
	}
	if err := other.Validate(); err != nil {
		return err
	}
	if len(*l) > 0 && other.Dim() != l.Dim() {
		return DimensionMismatch(l.Dim(), other.Dim()).WithComponent("point_list").WithOperation("Extend")
	}
	*l = append(*l, other...)
	return nil
}

// Clone returns a copy of the list. Coordinate slices are shared.
func (l PointList) Clone() PointList {
	return slices.Clone(l)
}

// Xs returns the coordinate vectors of all points.
func (l PointList) Xs() [][]float64 {
	xs := make([][]float64, len(l))
	for i, p := range l {
		xs[i] = p.X
	}
	return xs
}

// Ys returns the values of all points.
func (l PointList) Ys() []float64 {
	ys := make([]float64, len(l))
	for i, p := range l {
		ys[i] = p.Y
	}
	return ys
}

// OnlyEvaluated returns the points whose values came from the real objective.
func (l PointList) OnlyEvaluated() PointList {
	out := make(PointList, 0, len(l))
	for _, p := range l {
		if p.IsEvaluated {
			out = append(out, p)
		}
	}
	return out
}

// Contains reports whether a point with the same coordinates is in the list.
func (l PointList) Contains(p Point) bool {
	for _, q := range l {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

// XDifference returns the points of l whose coordinates do not appear in other.
func (l PointList) XDifference(other PointList) PointList {
	out := make(PointList, 0, len(l))
	for _, p := range l {
		if !other.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// BestIndex returns the index of the point with the lowest value, -1 if
// no point has a value. Ties resolve to the first occurrence.
func (l PointList) BestIndex() int {
	best := -1
	for i, p := range l {
		if !p.HasY {
			continue
		}
		if best < 0 || p.Y < l[best].Y {
			best = i
		}
	}
	return best
}

// Best returns the point with the lowest value.
func (l PointList) Best() (Point, bool) {
	i := l.BestIndex()
	if i < 0 {
		return Point{}, false
	}
	return l[i], true
}

// BestY returns the lowest value in the list, +Inf if there is none.
func (l PointList) BestY() float64 {
	i := l.BestIndex()
	if i < 0 {
		return math.Inf(1)
	}
	return l[i].Y
}

// Rank returns a copy of the list stably sorted by value.
func (l PointList) Rank(descending bool) PointList {
	out := l.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Y > out[j].Y
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// SliceToBest returns the prefix of the list ending at the best point.
// Its length is the number of evaluations needed to reach the best value.
func (l PointList) SliceToBest() PointList {
	i := l.BestIndex()
	if i < 0 {
		return PointList{}
	}
	return l[:i+1]
}
