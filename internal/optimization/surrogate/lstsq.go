package surrogate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// leastSquares returns the minimum norm solution of min ||a x - b||.
// Singular values below max(m, n) * eps * s_max are treated as zero, so
// rank deficient systems still have a well-defined solution.
func leastSquares(a mat.Matrix, b *mat.VecDense) (*mat.VecDense, error) {
	m, n := a.Dims()
	if b.Len() != m {
		return nil, optimization.DimensionMismatch(m, b.Len()).WithOperation("leastSquares")
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, optimization.NewError(optimization.ErrNumericalFailure, "SVD did not converge").
			WithOperation("leastSquares")
	}

	values := svd.Values(nil)
	if len(values) == 0 || !(values[0] > 0) || math.IsInf(values[0], 0) {
		return nil, optimization.NewError(optimization.ErrNumericalFailure, "design matrix is singular").
			WithOperation("leastSquares")
	}
	cutoff := float64(max(m, n)) * values[0] * eps

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	x := mat.NewVecDense(n, nil)
	for i, s := range values {
		if s <= cutoff {
			break
		}
		coef := mat.Dot(u.ColView(i), b) / s
		x.AddScaledVec(x, coef, v.ColView(i))
	}
	return x, nil
}

const eps = 2.220446049250313e-16
