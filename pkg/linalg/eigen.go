package linalg

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// SymEig holds an ascending-eigenvalue-sorted symmetric eigendecomposition:
// Values[i] is the i-th eigenvalue and Vectors' i-th column is its
// eigenvector, matching the span setup's requirement that Ti's columns be
// sorted by ascending eigenvalue.
type SymEig struct {
	Values  []float64
	Vectors *mat.Dense
}

// EigenSymmetric decomposes a real symmetric n x n matrix, sorting the
// eigenpairs by ascending eigenvalue (gonum's EigenSym does not guarantee
// an order, unlike GSL's gsl_eigen_symmv_sort).
func EigenSymmetric(a *mat.Dense) (*SymEig, error) {
	n, _ := a.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, a.At(i, j))
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, errEigenFailed
	}
	values := es.Values(nil)

	var rawVec mat.Dense
	es.VectorsTo(&rawVec)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	sortedValues := make([]float64, n)
	vectors := mat.NewDense(n, n, nil)
	for col, orig := range idx {
		sortedValues[col] = values[orig]
		for row := 0; row < n; row++ {
			vectors.Set(row, col, rawVec.At(row, orig))
		}
	}

	return &SymEig{Values: sortedValues, Vectors: vectors}, nil
}

type eigenError string

func (e eigenError) Error() string { return string(e) }

const errEigenFailed = eigenError("symmetric eigendecomposition failed to converge")

// Invert returns the matrix inverse via LU decomposition.
func Invert(a *mat.Dense) (*mat.Dense, error) {
	n, _ := a.Dims()
	inv := mat.NewDense(n, n, nil)
	if err := inv.Inverse(a); err != nil {
		return nil, err
	}
	return inv, nil
}
