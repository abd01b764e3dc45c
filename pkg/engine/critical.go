package engine

import (
	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/linalg"
)

// Reset clears every device's trial-to-trial history and rewinds the
// clock, for reuse between shots of the outer critical-current search
// (§5). Arresters and pipe gaps left conducting, and flashed insulators
// and LPMs, take their admittance back out of Ybus; the netlist topology
// is untouched.
func (ctx *Context) Reset() {
	ctx.restoreTimeStep()
	ctx.t, ctx.Step, ctx.FlashHalt = 0, 0, false

	for _, l := range ctx.Lines {
		l.InitHistory()
	}

	for _, d := range ctx.arresters {
		d.Reset()
	}
	for _, d := range ctx.bezArresters {
		d.Reset()
	}
	for _, d := range ctx.insulators {
		d.Reset()
	}
	for _, d := range ctx.lpms {
		d.Reset(ctx.TMax, ctx.FirstDT)
	}
	for _, d := range ctx.customers {
		d.Reset()
	}
	for _, d := range ctx.pipeGaps {
		d.Reset()
	}
	for _, m := range ctx.meters {
		m.Reset()
	}
	for _, p := range ctx.Poles {
		p.ZeroInjection()
	}
}

// severityIndex is the worst-case per-unit flashover severity across
// every gap being watched: the maximum of each insulator's DE-based SI
// and each LPM's leader-position SI, 1.0 once any gap has actually
// flashed. icrit_function in the original is this value minus 1.0, plus
// a bonus term once already over threshold to steer Brent toward the
// true crossing instead of an arbitrary early flashover.
func (ctx *Context) severityIndex() float64 {
	si := 0.0
	for _, ins := range ctx.insulators {
		if v := ins.SeverityIndex(); v > si {
			si = v
		}
	}
	for _, l := range ctx.lpms {
		if v := l.EstimateSI(); v > si {
			si = v
		}
	}
	return si
}

// CriticalResult reports the outcome of one stroke-current search over a
// single front/tail pair (§5).
type CriticalResult struct {
	Front, Tail   float64
	ICritical     float64
	AlwaysFlashes bool
	NeverFlashes  bool
}

// RunCritical searches, for each (front, tail) pair, the peak stroke
// current at which the watched gaps' severity index first reaches 1.0,
// by Brent's method bracketed at [MinStroke, MaxStroke] (§5). surge is
// rescaled and re-fired each trial via its Move method; the caller is
// responsible for having built exactly the surge(s) under test.
func (ctx *Context) RunCritical(surge surgeMover, fronts, tails []float64, from, to int) ([]CriticalResult, error) {
	// Only the critical-current search truncates a trial's run early on a
	// flashover (the original's stop_on_flashover, TRUE only for
	// FIND_CRITICAL_CURRENT); a plain -plot run must reach Tmax regardless.
	ctx.FlashHaltEnabled = true
	results := make([]CriticalResult, len(fronts))

	trial := func(peak, front, tail float64) (float64, error) {
		ctx.Reset()
		surge.Move(from, to, peak, front, tail, 0)
		if err := ctx.Run(nil); err != nil {
			return 0, err
		}
		si := ctx.severityIndex()
		if ctx.FlashHalt {
			si = 1.0
		}
		bonus := 0.0
		if si >= 1.0 {
			bonus = (ctx.TMax - ctx.t) * 1e5
		}
		return si - 1.0 + bonus, nil
	}

	for i, front := range fronts {
		tail := tails[i]
		var errOut error
		fMin, err := trial(consts.MinStroke, front, tail)
		if err != nil {
			return nil, err
		}
		fMax, err := trial(consts.MaxStroke, front, tail)
		if err != nil {
			return nil, err
		}

		r := CriticalResult{Front: front, Tail: tail}
		switch {
		case fMin >= 0:
			r.AlwaysFlashes = true
			r.ICritical = consts.MinStroke
		case fMax <= 0:
			r.NeverFlashes = true
			r.ICritical = consts.MaxStroke
		default:
			f := func(i float64) float64 {
				v, err := trial(i, front, tail)
				if err != nil {
					errOut = err
				}
				return v
			}
			r.ICritical = linalg.Brent(f, consts.MinStroke, consts.MaxStroke, consts.BrentTolA, consts.MaxBrentIter)
			if errOut != nil {
				return nil, errOut
			}
		}
		results[i] = r
	}
	return results, nil
}

// surgeMover is implemented by Surge; SteepFront's extra per-unit-
// steepness parameter makes it a distinct shape for the critical-current
// driver and is not supported by this entry point.
type surgeMover interface {
	Move(from, to int, peak, front, tail, tstart float64)
}
