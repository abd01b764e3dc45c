package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Ground models an impulse-grounding electrode: a series lead inductance
// in a trapezoidal companion, terminated in a 60 Hz resistance R60 whose
// effective value Ri drops under high current due to soil ionisation
// (§4.8). The linear network continues to see the fixed y=1/(R60+ZL)
// admittance; a back-EMF bias current i_bias makes the branch behave as
// if it were driven by R60 in series with (Ri-R60).
type Ground struct {
	Parent   *pole.Pole
	From, To int

	R60, Ig, L float64

	zl, y, yr, yzl float64
	h              float64
	iBias          float64
	Ri             float64
	Amps           float64 // exported for Customer/Meter taps
}

// NewGround builds a ground electrode. rho is soil resistivity, e0 the
// ionisation-gradient constant; Ig = e0*rho/(R60^2*2*pi).
func NewGround(parent *pole.Pole, from, to int, r60, rho, e0, l, dT float64) *Ground {
	g := &Ground{Parent: parent, From: from, To: to, R60: r60, L: l, Ri: r60}
	g.Ig = e0 * rho / (r60 * r60 * consts.TwoPi)
	g.recompute(dT)
	parent.AddY(from, to, g.y)
	return g
}

func (g *Ground) recompute(dT float64) {
	g.zl = 2.0 * g.L / dT
	g.y = 1.0 / (g.R60 + g.zl)
	g.yr = g.y * g.R60
	g.yzl = g.y * g.zl
}

// Inject adds the back-EMF and history-driven current into the pole.
func (g *Ground) Inject() {
	i := g.h*g.yzl + g.iBias*g.yr
	g.Parent.Injection[g.From] -= i
	g.Parent.Injection[g.To] += i
}

// UpdateHistory implements §4.8: recompute the ionised resistance Ri, the
// back-EMF bias, and the lead-inductor history current.
func (g *Ground) UpdateHistory() {
	v := branchVoltage(g.Parent, g.From, g.To)
	it := v*g.y + g.iBias*g.yr + g.h*g.yzl
	g.Amps = it

	g.Ri = g.R60 / math.Sqrt(1.0+math.Abs(it)/g.Ig)
	vg := it * g.Ri
	g.iBias = vg * (1.0/g.Ri - 1.0/g.R60)

	vl := v - vg
	if g.zl > 0 {
		g.h = it + vl/g.zl
	} else {
		g.h = 0
	}
}

func (g *Ground) ChangeTimeStep(firstDT, secondDT float64) {
	oldY := g.y
	_ = firstDT
	g.recompute(secondDT)
	g.Parent.AddY(g.From, g.To, g.y-oldY)

	v := branchVoltage(g.Parent, g.From, g.To)
	vg := g.Amps * g.Ri
	vl := v - vg
	if g.zl > 0 {
		g.h = g.Amps + vl/g.zl
	} else {
		g.h = 0
	}
}

func (g *Ground) RestoreTimeStep(firstDT, secondDT float64) {
	oldY := g.y
	_ = secondDT
	g.recompute(firstDT)
	g.Parent.AddY(g.From, g.To, g.y-oldY)
}
