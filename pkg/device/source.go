package device

import (
	"gonum.org/v1/gonum/mat"

	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Source is a constant per-phase current injection, used to sustain the
// power-frequency voltage profile at a matched surge-impedance line
// termination (§4.3): current = Yp * vp_offset, re-injected every step
// since Injection is zeroed at the start of each inner solve pass.
type Source struct {
	Parent *pole.Pole
	vals   []float64
}

// NewTerminationSource builds the constant current vector for a pole
// terminated with yp (the span's phase admittance matrix) and vpOffset
// (its initial phase voltages), matching terminate_pole's source setup.
func NewTerminationSource(parent *pole.Pole, yp *mat.Dense, vpOffset []float64) *Source {
	n := len(vpOffset)
	v := mat.NewVecDense(n, vpOffset)
	var out mat.VecDense
	out.MulVec(yp, v)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = out.AtVec(i)
	}
	return &Source{Parent: parent, vals: vals}
}

// Inject adds the constant termination current into the pole.
func (s *Source) Inject() {
	for i, v := range s.vals {
		s.Parent.Injection[i+1] += v
	}
}
