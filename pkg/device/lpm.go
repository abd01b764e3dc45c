package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

const (
	lpmSIForFOStarted = 0.9999
	lpmScaleTolerance = 0.0001
	lpmMaxScale       = 100.0
	lpmMinScale       = 0.01
)

// LPMFlashMode records whether flashover evaluation is disabled for this
// leader-progression gap (a CFO input of the opposite sign in the
// original file format), in progress, or complete.
type LPMFlashMode int

const (
	LPMNotFlashed LPMFlashMode = iota
	LPMFlashed
	LPMDisableFlash
)

// LPM is the leader-progression-model flashover gap (§4.7): positive and
// negative leader tips advance toward the far electrode at a rate driven
// by the instantaneous gap voltage, and the gap flashes over when either
// tip's remaining distance reaches zero. Unlike Insulator's DE model,
// LPM additionally records the full per-step voltage waveform so its
// severity index can be recomputed after the fact by rescaling that
// waveform and replaying the leader advance (§4.7's calculate_lpm_si).
type LPM struct {
	Parent   *pole.Pole
	From, To int

	CFO, E0, K float64
	FlashMode  LPMFlashMode

	d, xpos, xneg     float64
	vpkPos, vpkNeg    float64
	TFlash            float64
	SI                float64
	points            []float32
}

// NewLPM builds a leader-progression gap. If disableFlash is set
// (negative CFO in the original convention) the gap's waveform and peak
// voltages are still tracked but it never shorts Ybus.
func NewLPM(parent *pole.Pole, from, to int, cfo, e0, k float64, disableFlash bool, tmax, dT float64) *LPM {
	l := &LPM{Parent: parent, From: from, To: to, CFO: cfo, E0: e0, K: k}
	if disableFlash {
		l.FlashMode = LPMDisableFlash
	}
	l.Reset(tmax, dT)
	parent.Solve = true
	return l
}

// Reset clears leader position and recorded waveform; used between
// trial shots of the outer critical-current search, which may also
// change dT/tmax and therefore needs to resize the point buffer.
func (l *LPM) Reset(tmax, dT float64) {
	nsteps := int(tmax/dT) + 2
	if l.FlashMode == LPMFlashed {
		l.Parent.AddY(l.From, l.To, -consts.YShort)
	}
	l.d = l.CFO / 560.0e3
	l.xpos, l.xneg = l.d, l.d
	l.TFlash, l.vpkPos, l.vpkNeg, l.SI = 0, 0, 0, 0
	if l.FlashMode != LPMDisableFlash {
		l.FlashMode = LPMNotFlashed
	}
	l.points = make([]float32, nsteps)
}

// Check advances the leader positions from the current branch voltage
// and flashes the gap over if either tip's distance reaches zero. step
// indexes into the recorded waveform; dtSwitched suspends both the
// leader advance and the waveform recording while the engine runs the
// collapsed second time step, since the point buffer is sized for the
// original step count.
func (l *LPM) Check(t, dT float64, step int, dtSwitched bool) bool {
	if dtSwitched || l.FlashMode == LPMFlashed {
		return false
	}
	volts := l.Parent.Voltage[l.From] - l.Parent.Voltage[l.To]
	if step >= 0 && step < len(l.points) {
		l.points[step] = float32(volts)
	}
	if volts == 0.0 {
		return false
	}

	var sign int
	var x float64
	if volts > 0.0 {
		sign = 1
		x = l.xpos
	} else {
		sign = -1
		x = l.xneg
	}
	av := math.Abs(volts)
	ds := av * l.K * dT
	ds2 := ds * av / x
	ds *= l.E0
	dx := ds2 - ds

	if sign > 0 {
		if dx > 0.0 {
			l.xpos -= dx
		}
		if av > l.vpkPos {
			l.vpkPos = av
		}
	} else {
		if dx > 0.0 {
			l.xneg -= dx
		}
		if av > l.vpkNeg {
			l.vpkNeg = av
		}
	}

	if l.FlashMode == LPMDisableFlash {
		return false
	}
	if l.xpos <= 0.0 || l.xneg <= 0.0 {
		l.FlashMode = LPMFlashed
		l.TFlash = t
		l.Parent.AddY(l.From, l.To, consts.YShort)
		return true
	}
	return false
}

// flashesOver replays the recorded waveform, scaled, through the leader
// advance without mutating the gap's own state.
func (l *LPM) flashesOver(scale float64, nsteps int, dT float64) bool {
	xpos, xneg := l.d, l.d
	for i := 0; i < nsteps && i < len(l.points); i++ {
		volts := scale * float64(l.points[i])
		var sign int
		var x float64
		if volts > 0.0 {
			sign = 1
			x = xpos
		} else if volts < 0.0 {
			sign = -1
			x = xneg
		} else {
			continue
		}
		av := math.Abs(volts)
		ds := av * l.K * dT
		ds2 := ds * av / x
		ds *= l.E0
		dx := ds2 - ds
		if sign > 0 && dx > 0.0 {
			xpos -= dx
		} else if sign < 0 && dx > 0.0 {
			xneg -= dx
		}
		if xpos <= 0.0 || xneg <= 0.0 {
			return true
		}
	}
	return false
}

// CalculateSI finds, by bisection on a voltage-scale factor, the largest
// scaling of the recorded waveform that does NOT flash the gap over; the
// severity index is the reciprocal of that critical scale.
func (l *LPM) CalculateSI(tmax, dT float64) float64 {
	if l.FlashMode == LPMFlashed {
		return 1.0
	}
	if l.vpkPos <= 0.0 && l.vpkNeg <= 0.0 {
		return 0.0
	}
	nsteps := int(tmax/dT) + 1

	scaleLow, scaleHigh := 1.0, 1.0
	for scaleLow > lpmMinScale && l.flashesOver(scaleLow, nsteps, dT) {
		scaleLow *= 0.5
	}
	for scaleHigh < lpmMaxScale && !l.flashesOver(scaleHigh, nsteps, dT) {
		scaleHigh *= 2.0
	}
	for scaleHigh-scaleLow > lpmScaleTolerance {
		scaleMid := 0.5 * (scaleHigh + scaleLow)
		if l.flashesOver(scaleMid, nsteps, dT) {
			scaleHigh = scaleMid
		} else {
			scaleLow = scaleMid
		}
	}
	return 1.0 / (0.5 * (scaleHigh + scaleLow))
}

// EstimateSI is the cheap, non-bisecting severity estimate used when the
// engine is not asked for the exact SI.
func (l *LPM) EstimateSI() float64 {
	if l.FlashMode == LPMFlashed {
		return 1.0
	}
	siPos, siNeg := 0.0, 0.0
	if l.xpos < l.d {
		siPos = lpmSIForFOStarted
	} else if l.vpkPos > 0.0 {
		siPos = l.vpkPos / l.CFO
	}
	if l.xneg < l.d {
		siNeg = lpmSIForFOStarted
	} else if l.vpkNeg > 0.0 {
		siNeg = l.vpkNeg / l.CFO
	}
	if siPos > siNeg {
		return siPos
	}
	return siNeg
}
