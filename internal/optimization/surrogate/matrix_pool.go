package surrogate

import "gonum.org/v1/gonum/mat"

// MatrixPool provides reusable matrices to reduce allocations when a model
// solves one small system per query. Matrices come back zeroed with the
// requested shape. A MatrixPool is not safe for concurrent use.
type MatrixPool struct {
	densePools []*mat.Dense
	vecPools   []*mat.VecDense
}

// NewMatrixPool creates a new MatrixPool
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		densePools: make([]*mat.Dense, 0, 4),
		vecPools:   make([]*mat.VecDense, 0, 4),
	}
}

// GetDense returns an r×c zero matrix from the pool or creates a new one
func (p *MatrixPool) GetDense(r, c int) *mat.Dense {
	if len(p.densePools) > 0 {
		m := p.densePools[len(p.densePools)-1]
		p.densePools = p.densePools[:len(p.densePools)-1]
		if mr, mc := m.Dims(); mr == r && mc == c {
			m.Zero()
			return m
		}
		m.Reset()
		m.ReuseAs(r, c)
		return m
	}
	return mat.NewDense(r, c, nil)
}

// PutDense returns a dense matrix to the pool
func (p *MatrixPool) PutDense(m *mat.Dense) {
	p.densePools = append(p.densePools, m)
}

// GetVecDense returns a zero vector of length n from the pool or creates a new one
func (p *MatrixPool) GetVecDense(n int) *mat.VecDense {
	if len(p.vecPools) > 0 {
		v := p.vecPools[len(p.vecPools)-1]
		p.vecPools = p.vecPools[:len(p.vecPools)-1]
		if v.Len() == n {
			v.Zero()
			return v
		}
		v.Reset()
		v.ReuseAsVec(n)
		return v
	}
	return mat.NewVecDense(n, nil)
}

// PutVecDense returns a vector to the pool
func (p *MatrixPool) PutVecDense(v *mat.VecDense) {
	p.vecPools = append(p.vecPools, v)
}
