package device

import (
	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Inductor is a trapezoidal companion model: y=1/(R+2L/dT), with history
// current h updated from the branch voltage and the previous terminal
// current. Transformer (transformer.go) reuses this exact model as a
// series RL, since the original two-winding leakage model degenerates to
// it; Customer layers additional coupling on top of a dedicated Ground.
type Inductor struct {
	Parent   *pole.Pole
	From, To int
	R, L     float64

	y, yi, zi float64
	h         float64
}

// NewInductor builds and stamps an Inductor at the given time step.
func NewInductor(parent *pole.Pole, from, to int, r, l, dT float64) *Inductor {
	ind := &Inductor{Parent: parent, From: from, To: to, R: r, L: l}
	ind.recompute(dT)
	parent.AddY(from, to, ind.y)
	return ind
}

func (d *Inductor) recompute(dT float64) {
	d.y = 1.0 / (d.R + 2.0*d.L/dT)
	d.yi = 2.0 * d.y * (1.0 - d.R*d.y)
	d.zi = 1.0 - 2.0*d.R*d.y
}

// Inject adds the history current into the pole's injection vector.
func (d *Inductor) Inject() {
	d.Parent.Injection[d.From] -= d.h
	d.Parent.Injection[d.To] += d.h
}

// UpdateHistory recomputes h from the accepted branch voltage.
func (d *Inductor) UpdateHistory() {
	v := branchVoltage(d.Parent, d.From, d.To)
	d.h = d.zi*d.h + d.yi*v
}

// InitHistory sets up a nonzero trapped-charge history current if a
// nonzero initial dc branch voltage is present; fails per ERR_LVDC if R=0
// and a dc offset was requested (lossless inductor cannot sustain one).
func (d *Inductor) InitHistory(vdc float64) error {
	if vdc == 0 {
		return nil
	}
	denom := 1.0 - d.zi
	if denom == 0 {
		return oeerr.New(oeerr.ErrLVDC, "inductor %d-%d: cannot hold a dc offset with zero series resistance", d.From, d.To)
	}
	d.h = vdc * d.yi / denom
	return nil
}

// ChangeTimeStep implements SecondDTAdjuster (§4.10): recompute y/yi/zi at
// the new dT, issue the corresponding Ybus edit, and transform history to
// preserve the terminal current implied by the old companion model.
func (d *Inductor) ChangeTimeStep(firstDT, secondDT float64) {
	v := branchVoltage(d.Parent, d.From, d.To)
	it := d.y*v + d.h
	oldY := d.y
	_ = firstDT
	d.recompute(secondDT)
	d.Parent.AddY(d.From, d.To, d.y-oldY)
	d.h = d.y * ((2.0*d.L/secondDT-d.R)*it + v)
}

func (d *Inductor) RestoreTimeStep(firstDT, secondDT float64) {
	oldY := d.y
	_ = secondDT
	d.recompute(firstDT)
	d.Parent.AddY(d.From, d.To, d.y-oldY)
}
