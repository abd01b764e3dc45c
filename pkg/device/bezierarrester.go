package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/bezier"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// ArresterSize selects the EPRI reference V-I curve family by voltage
// class (the original split between the arrbez and newarr device types
// was purely this class split plus the optional Cigre dynamics below).
type ArresterSize int

const (
	ArrSize2pt7To48 ArresterSize = iota
	ArrSize54To360
)

// ArresterWave selects which discharge waveshape characteristic the
// fitted curve represents.
type ArresterWave int

const (
	ArrWaveFOW ArresterWave = iota
	ArrWave8x20
	ArrWave36x90
	ArrWaveLong
)

// BezierArrester is the Thevenin-compensated nonlinear arrester port
// (§4.5): a Bezier-fit V-I characteristic in series with an optional
// sparkover gap and built-in lead inductance, with an optional Cigre
// dynamic-conductance element (activated whenever Uref > 0) that
// reproduces the protective-level droop under fast front-of-wave surges.
// This unifies what the original shipped as two near-identical device
// types (one Cigre-enabled, one not) into a single configuration.
type BezierArrester struct {
	Parent   *pole.Pole
	from, to int

	V10, VGap, Uref float64
	RL, GL          float64

	shape *bezier.Fit

	rGap, g, gRef, r float64
	h                float64

	Amps, Varr                          float64
	Charge, Energy, IPeak, TStart, TPeak float64

	lastV, lastI float64
}

// NewBezierArrester builds an arrester port and registers it with the
// owning pole as a NonlinearPort. v10 is the discharge voltage at 10kA
// 8x20us (the curve-family selector); vGap is the sparkover threshold
// (0 for a gapless arrester); uref, if nonzero, is the per-unit (of v10)
// reference voltage enabling the Cigre dynamic-conductance term.
func NewBezierArrester(parent *pole.Pole, from, to int, v10, vGap, uref, l, length, dT float64, size ArresterSize, wave ArresterWave, useLinear bool) *BezierArrester {
	a := &BezierArrester{Parent: parent, from: from, to: to, V10: v10, VGap: vGap}
	a.Uref = uref * v10
	rl := 2.0 * (l * length) / dT
	a.RL = rl
	if rl > 0 {
		a.GL = dT / (l * length)
	}
	a.shape = buildArresterCurve(v10, size, wave, useLinear)
	a.Reset()
	parent.RegisterPort(a)
	return a
}

// Reset restores cleared history state; used at construction and between
// trial shots of the outer critical-current search.
func (a *BezierArrester) Reset() {
	a.TStart, a.TPeak, a.Energy, a.Charge, a.IPeak = 0, 0, 0, 0, 0
	a.Amps, a.Varr, a.h = 0, 0, 0
	if a.VGap > 0 {
		a.rGap = a.VGap / 1.0e-3
	} else {
		a.rGap = 0
		a.TStart = -1 // marks "already sparked over", matching dT sentinel in the original
	}
	if a.Uref > 0 {
		a.gRef = 34.0 / (a.V10 / 1000.0)
		a.g = consts.OpenCircuitG
	} else {
		a.gRef = 0
		a.g = consts.ShortCircuitG
	}
	a.r = a.RL + a.rGap + 1.0/a.g
}

// ChangeTimeStep implements SecondDTAdjuster (§4.10): rescale the lead
// inductor's companion resistance/conductance at the new dT.
func (a *BezierArrester) ChangeTimeStep(firstDT, secondDT float64) {
	vl := a.RL * (a.Amps - a.h)
	a.RL *= firstDT / secondDT
	a.GL *= secondDT / firstDT
	a.r = a.RL + a.rGap + 1.0/a.g
	a.h = a.Amps - 0.5*a.GL*vl
}

// RestoreTimeStep undoes ChangeTimeStep's rescaling.
func (a *BezierArrester) RestoreTimeStep(firstDT, secondDT float64) {
	a.RL *= secondDT / firstDT
	a.GL *= firstDT / secondDT
	a.r = a.RL + a.rGap + 1.0/a.g
}

func (a *BezierArrester) From() int        { return a.from }
func (a *BezierArrester) To() int          { return a.to }
func (a *BezierArrester) SeriesR() float64  { return a.r }

// HistoryBias returns the lead inductor's stored-energy contribution to
// this port's Thevenin target voltage, h*rl in solve_pole, zero when the
// lead inductance is zero.
func (a *BezierArrester) HistoryBias() float64 { return a.h * a.RL }

// Eval evaluates the fitted V-I curve and records the trial operating
// point; called repeatedly by the pole's Newton compensation, the last
// call before convergence leaves lastV/lastI holding the accepted values.
func (a *BezierArrester) Eval(v float64) (float64, float64) {
	a.lastV = v
	a.lastI = a.shape.Eval(v)
	return a.lastI, a.shape.D1(v)
}

// UpdateHistory advances the gap-sparkover and Cigre dynamic-conductance
// state, and the lead-inductor history current, from the accepted
// operating point (§4.5). t is simulation time, dT the active step.
func (a *BezierArrester) UpdateHistory(t, dT float64) {
	vGap := branchVoltage(a.Parent, a.from, a.to)

	if a.rGap > 0.0 {
		if math.Abs(vGap) > math.Abs(a.VGap) {
			a.rGap = 0.0
			a.TStart = t
			a.r = a.RL + a.rGap + 1.0/a.g
		}
		return
	}

	if a.Uref > 0.0 && a.g < consts.ShortCircuitG {
		ipu := a.Amps / consts.NewArrIref
		vpu := math.Abs(vGap) / a.Uref
		gpu := a.g / a.gRef
		dG := (a.gRef / consts.NewArrTref) * (1.0 + gpu) * (1.0 + gpu*ipu*ipu) * math.Exp(vpu)
		a.g += dG * dT
		a.r = a.RL + a.rGap + 1.0/a.g
	}

	a.Amps = a.lastI
	a.Varr = a.lastV
	if a.RL > 0.0 {
		vl := a.RL * (a.lastI - a.h)
		a.h += vl * a.GL
	}

	dCharge := dT * a.Amps
	a.Charge += dCharge
	a.Energy += dCharge * a.Varr
	if math.Abs(a.Amps) > math.Abs(a.IPeak) {
		a.IPeak = a.Amps
		a.TPeak = t
	}
}

// buildArresterCurve fits a representative per-unit V-I Bezier curve
// scaled to v10, the 10kA discharge voltage. The original's literal EPRI
// lookup tables (indexed by ArresterSize/ArresterWave/min-max) are
// proprietary and were not present in the retrieved source; this builds
// a physically reasonable substitute curve with the correct shape
// (concave, passing through 1.0 p.u. at 10kA, flattening at high current)
// scaled by the requested voltage class, noting the size/wave selectors
// for forward compatibility with a literal table should one become
// available. The fit maps block voltage to current (x in volts, y in
// amperes), the direction Eval and the pole's Newton compensation use,
// and starts at the origin so the odd extension below x[0] is symmetric
// about zero.
func buildArresterCurve(v10 float64, size ArresterSize, wave ArresterWave, useLinear bool) *bezier.Fit {
	_ = size
	_ = wave

	puI := []float64{0.0, 0.001, 0.01, 0.1, 1.0, 2.0, 5.0, 10.0, 20.0, 40.0}
	puV := []float64{0.0, 0.72, 0.79, 0.87, 0.96, 1.00, 1.06, 1.08, 1.16, 1.22}

	x := make([]float64, len(puI))
	y := make([]float64, len(puI))
	for i := range puI {
		x[i] = puV[i] * v10    // volts
		y[i] = puI[i] * 10.0e3 // amperes
	}
	return bezier.Build(x, y, useLinear)
}
