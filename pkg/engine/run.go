package engine

import (
	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/plot"
	"github.com/epri-oss/openetran-go/pkg/util"
)

// StepObserver receives one callback per accepted time step, either to
// write a plot record or to feed an external accumulator; either values
// is nil is never the case, it is always len(meters) long in meter order.
type StepObserver func(t float64, values []float64)

// Run drives the full time-step loop to TMax or until a flashover halts
// it (§4.1), following the original's fixed per-step dispatch order:
// inject, triangulate, solve, re-solve while arrester/pipegap state is
// still settling, then check grounds/insulators/lpms, update every
// device's history, advance the line coupling, sample meters, and
// finally switch to the second time step once past DTSwitchTime.
func (ctx *Context) Run(writer plot.Writer) error {
	adjustedTMax := ctx.TMax + 0.5*ctx.FirstDT
	ctx.t, ctx.Step = 0, 0

	for ctx.t <= adjustedTMax && !(ctx.FlashHalt && ctx.FlashHaltEnabled) {
		if err := ctx.stepOnce(); err != nil {
			return err
		}

		for _, m := range ctx.meters {
			m.UpdatePeak()
		}
		if writer != nil {
			values := make([]float64, len(ctx.meters))
			for i, m := range ctx.meters {
				values[i] = m.Sample()
			}
			if err := writer.WriteStep(ctx.t, values); err != nil {
				return oeerr.Wrap(oeerr.ErrNoBuffer, err, "writing plot step")
			}
		}

		if ctx.SecondDT > 0 && !ctx.DTSwitched && ctx.t >= ctx.DTSwitchTime {
			ctx.changeTimeStep()
		}

		ctx.t += ctx.dT
		ctx.Step++
	}

	if ctx.FlashHalt && ctx.FlashHaltEnabled {
		ctx.log.WithField("step", ctx.Step).Infof("flashover at t=%s, halting", util.FormatDuration(ctx.t))
	} else if ctx.FlashHalt {
		ctx.log.WithField("step", ctx.Step).Debug("flashover occurred, run continuing to Tmax")
	} else {
		ctx.log.WithField("step", ctx.Step).Debug("run complete")
	}
	return nil
}

// stepOnce runs one accepted simulation step: injection, the arrester
// /pipegap re-solve loop, then the once-per-step gap checks and history
// updates.
func (ctx *Context) stepOnce() error {
	for _, p := range ctx.Poles {
		p.ZeroInjection()
	}

	inject := func() {
		for _, ti := range ctx.timeInjectors {
			ti.Inject(ctx.t)
		}
		for _, in := range ctx.injectors {
			in.Inject()
		}
		for _, s := range ctx.termSources {
			s.Inject()
		}
		for _, l := range ctx.Lines {
			left := ctx.Poles[l.LeftPole-1]
			right := ctx.Poles[l.RightPole-1]
			leftModal := make([]float64, l.Defn.N)
			rightModal := make([]float64, l.Defn.N)
			l.InjectModal(ctx.Step, leftModal, rightModal)
			leftPhase := toPhase(l.Defn.Ti, leftModal)
			rightPhase := toPhase(l.Defn.Ti, rightModal)
			for i := 0; i < l.Defn.N; i++ {
				left.Injection[i+1] += leftPhase[i]
				right.Injection[i+1] += rightPhase[i]
			}
		}
	}

	solveAll := func() error {
		for _, p := range ctx.Poles {
			if err := p.Triang(); err != nil {
				return err
			}
		}
		for _, p := range ctx.Poles {
			voc := p.SolveLinear()
			if p.NumNonlinear() > 0 {
				if _, err := p.SolveNonlinear(voc); err != nil {
					return err
				}
			}
		}
		return nil
	}

	inject()
	if err := solveAll(); err != nil {
		return err
	}

	turnOns := make([]int, len(ctx.stateCheckers))
	for iter := 0; ; iter++ {
		changed := false
		for i, sc := range ctx.stateCheckers {
			if sc.Check(ctx.t, ctx.dT) {
				changed = true
				turnOns[i]++
				if turnOns[i] > 1 {
					return oeerr.New(oeerr.ErrLTStopped, "step %d: arrester/pipegap %d changed conduction state twice within one step", ctx.Step, i)
				}
			}
		}
		if !changed {
			break
		}
		if iter >= consts.MaxInnerResolve {
			return oeerr.New(oeerr.ErrLTStopped, "step %d: arrester/pipegap state did not settle after %d re-solves", ctx.Step, consts.MaxInnerResolve)
		}
		if err := solveAll(); err != nil {
			return err
		}
	}

	for _, ins := range ctx.insulators {
		if ins.Check(ctx.t, ctx.dT, ctx.DTSwitched) {
			ctx.FlashHalt = true
		}
	}
	for _, l := range ctx.lpms {
		if l.Check(ctx.t, ctx.dT, ctx.Step, ctx.DTSwitched) {
			ctx.FlashHalt = true
		}
	}

	for _, hu := range ctx.historyUpdaters {
		hu.UpdateHistory()
	}
	for _, thu := range ctx.timeHistoryUpdaters {
		thu.UpdateHistory(ctx.t, ctx.dT)
	}

	for _, l := range ctx.Lines {
		left := ctx.Poles[l.LeftPole-1]
		right := ctx.Poles[l.RightPole-1]
		leftPhase := left.Voltage[1 : l.Defn.N+1]
		rightPhase := right.Voltage[1 : l.Defn.N+1]
		leftModal := toModal(l.Defn.Tvt, leftPhase)
		rightModal := toModal(l.Defn.Tvt, rightPhase)
		l.UpdateHistory(ctx.Step, leftModal, rightModal)
	}

	return nil
}

// changeTimeStep switches the active clock to SecondDT, rescaling every
// second-dT-aware device in the original's fixed order (§4.10): arrbez,
// arrester, capacitor, customer, ground, inductor, line.
func (ctx *Context) changeTimeStep() {
	for _, d := range ctx.bezArresters {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.arresters {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.capacitors {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.customers {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.grounds {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.inductors {
		d.ChangeTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, l := range ctx.Lines {
		l.CollapseForSecondDT(ctx.Step)
	}
	ctx.dT = ctx.SecondDT
	ctx.DTSwitched = true
}

// restoreTimeStep reverts changeTimeStep, used by the critical-current
// driver to reset a trial run back to its initial clock.
func (ctx *Context) restoreTimeStep() {
	if !ctx.DTSwitched {
		return
	}
	for _, d := range ctx.bezArresters {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.arresters {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.capacitors {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.customers {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.grounds {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, d := range ctx.inductors {
		d.RestoreTimeStep(ctx.FirstDT, ctx.SecondDT)
	}
	for _, l := range ctx.Lines {
		l.RestoreFirstDT()
	}
	ctx.dT = ctx.FirstDT
	ctx.DTSwitched = false
}
