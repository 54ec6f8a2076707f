package optimization

import (
	"math"
	"math/rand/v2"
	"strings"
)

// BoundsMode selects how out-of-bounds coordinates are brought back in.
type BoundsMode string

const (
	// BoundsProject clamps to the nearest bound.
	BoundsProject BoundsMode = "project"
	// BoundsReflect mirrors off the bounds, as many times as needed.
	BoundsReflect BoundsMode = "reflect"
	// BoundsWrap wraps around toroidally.
	BoundsWrap BoundsMode = "wrap"
)

// ParseBoundsMode converts a string into a BoundsMode.
func ParseBoundsMode(s string) (BoundsMode, error) {
	switch mode := BoundsMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case BoundsProject, BoundsReflect, BoundsWrap:
		return mode, nil
	}
	return "", NewErrorf(ErrInvalidArgument, "unknown bounds mode %q", s).WithComponent("bounds")
}

// Bounds is the closed interval [Lower, Upper] applied to every dimension.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewBounds returns bounds after checking that lower < upper.
func NewBounds(lower, upper float64) (Bounds, error) {
	b := Bounds{Lower: lower, Upper: upper}
	if !b.IsValid() {
		return Bounds{}, NewErrorf(ErrInvalidArgument, "lower bound %v must be below upper bound %v", lower, upper).
			WithComponent("bounds")
	}
	return b, nil
}

// IsValid reports whether the interval is non-degenerate.
func (b Bounds) IsValid() bool {
	return b.Lower < b.Upper
}

// Width returns Upper - Lower.
func (b Bounds) Width() float64 {
	return b.Upper - b.Lower
}

// Contains reports whether every coordinate of p lies within the bounds.
func (b Bounds) Contains(p Point) bool {
	for _, v := range p.X {
		if v < b.Lower || v > b.Upper {
			return false
		}
	}
	return true
}

// RandomPoint samples an unevaluated point uniformly from the bounds.
func (b Bounds) RandomPoint(dim int, rng *rand.Rand) Point {
	x := make([]float64, dim)
	for i := range x {
		x[i] = b.Lower + rng.Float64()*b.Width()
	}
	return Point{X: x}
}

// RandomPointList samples n unevaluated points uniformly from the bounds.
func (b Bounds) RandomPointList(n, dim int, rng *rand.Rand) PointList {
	list := make(PointList, n)
	for i := range list {
		list[i] = b.RandomPoint(dim, rng)
	}
	return list
}

// Project clamps every coordinate to the nearest bound.
func (b Bounds) Project(p Point) Point {
	return b.apply(p, func(v float64) float64 {
		return math.Min(math.Max(v, b.Lower), b.Upper)
	})
}

// Reflect mirrors every out-of-bounds coordinate off the bounds. A coordinate
// overshooting by more than the interval width is reflected repeatedly.
func (b Bounds) Reflect(p Point) Point {
	w := b.Width()
	return b.apply(p, func(v float64) float64 {
		if v >= b.Lower && v <= b.Upper {
			return v
		}
		t := floorMod(v-b.Lower, 2*w)
		if t > w {
			t = 2*w - t
		}
		return b.Lower + t
	})
}

// Wrap maps every out-of-bounds coordinate around the interval as on a torus.
func (b Bounds) Wrap(p Point) Point {
	w := b.Width()
	return b.apply(p, func(v float64) float64 {
		if v >= b.Lower && v <= b.Upper {
			return v
		}
		return b.Lower + floorMod(v-b.Lower, w)
	})
}

// Handle applies the boundary policy named by mode.
func (b Bounds) Handle(p Point, mode BoundsMode) (Point, error) {
	switch mode {
	case BoundsProject:
		return b.Project(p), nil
	case BoundsReflect:
		return b.Reflect(p), nil
	case BoundsWrap:
		return b.Wrap(p), nil
	}
	return Point{}, NewErrorf(ErrInvalidArgument, "unknown bounds mode %q", mode).
		WithComponent("bounds").WithOperation("Handle")
}

// apply maps f over the coordinates, preserving the value and evaluation flag.
func (b Bounds) apply(p Point, f func(float64) float64) Point {
	out := p
	out.X = make([]float64, len(p.X))
	for i, v := range p.X {
		out.X[i] = f(v)
	}
	return out
}

func floorMod(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}
