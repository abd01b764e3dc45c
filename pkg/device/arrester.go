package device

import (
	"math"

	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Arrester models a single-segment gapped (or gapless, VGap==VKnee) V-I
// characteristic with a built-in lead inductance (§4.6). While not
// conducting it contributes nothing to Ybus; sparkover adds its
// discharge-slope admittance for the remainder of conduction, and the
// arrester clears again once the discharge voltage falls below VKnee.
type Arrester struct {
	Parent   *pole.Pole
	From, To int

	VKnee, VGap, RSlope, L float64
	KneeBias, GapBias      float64

	y, yr, zl, yzl float64
	h, i, iPast    float64
	iBias          float64
	Conducting     bool

	Charge, Energy, IPeak, TStart, TPeak, Amps float64
}

// NewArrester builds an arrester branch. vGap == vKnee for a gapless
// arrester; vGap is clamped up to vKnee if given smaller.
func NewArrester(parent *pole.Pole, from, to int, vKnee, vGap, rSlope, l, dT float64) *Arrester {
	if vGap < vKnee {
		vGap = vKnee
	}
	a := &Arrester{
		Parent: parent, From: from, To: to,
		VKnee: vKnee, VGap: vGap, RSlope: rSlope, L: l,
		KneeBias: vKnee / rSlope, GapBias: vGap / rSlope,
	}
	a.zl = 2.0 * l / dT
	a.y = 1.0 / (rSlope + a.zl)
	a.yr = a.y * rSlope
	a.yzl = a.y * a.zl
	a.Reset()
	return a
}

// Reset restores the cleared, non-conducting history state; used both at
// construction and between trial shots of the outer critical-current search.
func (a *Arrester) Reset() {
	if a.Conducting {
		a.Parent.AddY(a.From, a.To, -a.y)
	}
	a.iBias = a.GapBias
	a.TStart, a.TPeak, a.Energy, a.Charge, a.IPeak = 0, 0, 0, 0, 0
	a.h, a.i, a.iPast, a.Amps = 0, 0, 0, 0
	a.Conducting = false
}

// Inject adds the previous step's arrester current into the pole, if
// presently conducting.
func (a *Arrester) Inject() {
	if !a.Conducting {
		return
	}
	a.Parent.Injection[a.From] -= a.iPast
	a.Parent.Injection[a.To] += a.iPast
}

// Check evaluates sparkover or clearing against the just-solved branch
// voltage, editing Ybus and reporting whether a forced re-solve of this
// step is required.
func (a *Arrester) Check(t, dT float64) bool {
	p := a.Parent
	volts := p.Voltage[a.From] - p.Voltage[a.To]
	posNow := volts > 0.0

	if a.Conducting {
		amps := volts*a.y + a.iPast
		a.Amps = amps
		var vr float64
		if posNow {
			vr = a.RSlope * (amps + a.iBias)
		} else {
			vr = a.RSlope * (amps - a.iBias)
		}
		a.iBias = a.KneeBias
		vl := volts - vr
		a.Energy += dT * amps * vr
		a.Charge += dT * amps
		if a.zl > 0.0 {
			a.h = amps + vl/a.zl
		}
		a.i = a.h * a.yzl
		if posNow {
			a.i -= a.yr * a.iBias
		} else {
			a.i += a.yr * a.iBias
		}
		if math.Abs(amps) > math.Abs(a.IPeak) {
			a.IPeak = amps
			a.TPeak = t
		}
		if math.Abs(vr) < a.VKnee {
			a.Conducting = false
			p.AddY(a.From, a.To, -a.y)
			a.h, a.i = 0, 0
		}
		return false
	}

	if math.Abs(volts) > a.VGap {
		a.Conducting = true
		p.AddY(a.From, a.To, a.y)
		a.iBias = a.GapBias
		if posNow {
			a.i = -a.yr * a.iBias
		} else {
			a.i = a.yr * a.iBias
		}
		a.iPast = a.i
		if a.TStart < dT {
			a.TStart = t
		}
		return true
	}
	return false
}

// UpdateHistory latches this step's prospective current as next step's
// injection.
func (a *Arrester) UpdateHistory() {
	a.iPast = a.i
}

// ChangeTimeStep implements SecondDTAdjuster (§4.10): rescale the lead
// inductor's companion admittance at the new dT and, if currently
// conducting, transform history to match.
func (a *Arrester) ChangeTimeStep(firstDT, secondDT float64) {
	oldY := a.y
	a.zl *= firstDT / secondDT
	a.y = 1.0 / (a.RSlope + a.zl)
	a.yr = a.y * a.RSlope
	a.yzl = a.y * a.zl
	if !a.Conducting {
		return
	}
	a.Parent.AddY(a.From, a.To, a.y-oldY)
	volts := branchVoltage(a.Parent, a.From, a.To)
	posNow := volts > 0.0
	var vr float64
	if posNow {
		vr = a.RSlope * (a.Amps + a.iBias)
	} else {
		vr = a.RSlope * (a.Amps - a.iBias)
	}
	vl := volts - vr
	if a.zl > 0.0 {
		a.h = a.Amps + vl/a.zl
	}
	a.i = a.h * a.yzl
	if posNow {
		a.i -= a.yr * a.iBias
	} else {
		a.i += a.yr * a.iBias
	}
	a.iPast = a.i
}

// RestoreTimeStep undoes ChangeTimeStep's rescaling. Ybus is left
// untouched here even while conducting, matching the original.
func (a *Arrester) RestoreTimeStep(firstDT, secondDT float64) {
	a.zl *= secondDT / firstDT
	a.y = 1.0 / (a.RSlope + a.zl)
	a.yr = a.y * a.RSlope
	a.yzl = a.y * a.zl
}
