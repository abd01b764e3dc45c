// Package linalg is the dense linear-algebra facade used by the pole
// solver and span setup in place of a GSL dependency: partial-pivot LU
// with back-substitution, a symmetric eigensolve for modal decomposition,
// and a Brent root-finder for the critical-current driver.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a thin, 0-based-indexed wrapper over gonum's dense matrix
// with AddElement/AddRHS accumulation helpers, sized for per-pole
// admittance systems (at most MaxPoleNodes square).
type Matrix struct {
	n   int
	a   *mat.Dense
	rhs *mat.VecDense
}

// NewMatrix allocates a zeroed n x n system with an n-length RHS.
func NewMatrix(n int) *Matrix {
	return &Matrix{
		n:   n,
		a:   mat.NewDense(n, n, nil),
		rhs: mat.NewVecDense(n, nil),
	}
}

func (m *Matrix) N() int { return m.n }

// AddElement adds value to the system matrix entry i,j (0-based).
func (m *Matrix) AddElement(i, j int, value float64) {
	m.a.Set(i, j, m.a.At(i, j)+value)
}

// SetElement overwrites the system matrix entry i,j.
func (m *Matrix) SetElement(i, j int, value float64) { m.a.Set(i, j, value) }

func (m *Matrix) Element(i, j int) float64 { return m.a.At(i, j) }

// AddRHS adds value to RHS entry i.
func (m *Matrix) AddRHS(i int, value float64) { m.rhs.SetVec(i, m.rhs.AtVec(i)+value) }

func (m *Matrix) SetRHS(i int, value float64) { m.rhs.SetVec(i, value) }

func (m *Matrix) RHSAt(i int) float64 { return m.rhs.AtVec(i) }

// Clear zeros the matrix and RHS in place, preserving allocation.
func (m *Matrix) Clear() {
	m.a.Zero()
	m.rhs.Zero()
}

// Clone returns a deep copy of the system (used to snapshot Ybus before
// factoring, since LU factors overwrite in place).
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.n)
	out.a.Copy(m.a)
	out.rhs.CopyVec(m.rhs)
	return out
}

// LU holds a partial-pivot LU factorization of a Matrix's system matrix.
type LU struct {
	n      int
	lu     mat.LU
	source *Matrix
}

// Factorize floors zero diagonal entries to YOpen before factoring, as the
// pole solver requires for unused nodes, then returns the LU factors.
func (m *Matrix) Factorize(yOpen float64) *LU {
	for i := 0; i < m.n; i++ {
		if m.a.At(i, i) == 0.0 {
			m.a.Set(i, i, yOpen)
		}
	}
	var lu mat.LU
	lu.Factorize(m.a)
	return &LU{n: m.n, lu: lu, source: m}
}

// Solve back-substitutes the current RHS against the factored system,
// returning the solution vector.
func (f *LU) Solve(rhs *mat.VecDense) *mat.VecDense {
	var x mat.VecDense
	_ = f.lu.SolveVecTo(&x, false, rhs)
	return &x
}

// SolveColumn solves A*x = e_k (the k-th standard basis vector), used to
// build the Thevenin reduction columns for nonlinear-port compensation.
func (f *LU) SolveColumn(k int) *mat.VecDense {
	e := mat.NewVecDense(f.n, nil)
	e.SetVec(k, 1.0)
	return f.Solve(e)
}

// SolveSystem solves A*x = m.rhs in place and returns x.
func (m *Matrix) SolveSystem() *mat.VecDense {
	f := m.Factorize(0)
	return f.Solve(m.rhs)
}

// Residual computes max|A*x - b| for validating a solve.
func (m *Matrix) Residual(x *mat.VecDense) float64 {
	var av mat.VecDense
	av.MulVec(m.a, x)
	maxAbs := 0.0
	for i := 0; i < m.n; i++ {
		d := math.Abs(av.AtVec(i) - m.rhs.AtVec(i))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}
