package surrogate

import (
	"fmt"
)

// polynomialFeatures expands a vector into all monomials up to a total
// degree. Terms are ordered by degree, then lexicographically by variable
// index: for two variables and degree 2 the order is
// 1, x0, x1, x0^2, x0*x1, x1^2.
type polynomialFeatures struct {
	dim    int
	degree int
	terms  [][]int
}

func newPolynomialFeatures(dim, degree int) polynomialFeatures {
	terms := [][]int{{}}
	for d := 1; d <= degree; d++ {
		terms = append(terms, combinationsWithReplacement(dim, d)...)
	}
	return polynomialFeatures{dim: dim, degree: degree, terms: terms}
}

// numPolynomialFeatures returns C(dim + degree, degree).
func numPolynomialFeatures(dim, degree int) int {
	n := 1
	for i := 1; i <= degree; i++ {
		n = n * (dim + i) / i
	}
	return n
}

// Len returns the number of output features.
func (f polynomialFeatures) Len() int {
	return len(f.terms)
}

// Expand writes the features of x into dst, which must have length Len().
func (f polynomialFeatures) Expand(x, dst []float64) {
	if len(x) != f.dim || len(dst) != len(f.terms) {
		panic(fmt.Sprintf("polynomial features: bad lengths x=%d dst=%d", len(x), len(dst)))
	}
	for i, term := range f.terms {
		v := 1.0
		for _, j := range term {
			v *= x[j]
		}
		dst[i] = v
	}
}

// combinationsWithReplacement enumerates non-decreasing index tuples of
// length k over [0, n) in lexicographic order.
func combinationsWithReplacement(n, k int) [][]int {
	if n == 0 {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for {
		out = append(out, append([]int(nil), idx...))

		i := k - 1
		for i >= 0 && idx[i] == n-1 {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[i]
		}
	}
}
