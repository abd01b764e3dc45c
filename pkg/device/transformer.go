package device

import "github.com/epri-oss/openetran-go/pkg/pole"

// Transformer is a series RL companion model, identical in form to
// Inductor: the original two-winding leakage-reactance transformer
// degenerates to this once its magnetizing branch is neglected for
// lightning-surge timescales. Customer layers the secondary X2-current
// coupling on top of a dedicated house Ground instead of this type.
type Transformer struct {
	*Inductor
}

// NewTransformer builds a series-RL transformer branch.
func NewTransformer(parent *pole.Pole, from, to int, r, l, dT float64) *Transformer {
	return &Transformer{Inductor: NewInductor(parent, from, to, r, l, dT)}
}
