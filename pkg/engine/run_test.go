package engine_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/engine"
	"github.com/epri-oss/openetran-go/pkg/netlist"
)

// recordingWriter captures every accepted (t, values) sample passed to it,
// standing in for a real plot.Writer in tests that need to inspect the
// per-step trace rather than just a final peak.
type recordingWriter struct {
	ts   []float64
	rows [][]float64
}

func (w *recordingWriter) WriteStep(t float64, values []float64) error {
	w.ts = append(w.ts, t)
	cp := make([]float64, len(values))
	copy(cp, values)
	w.rows = append(w.rows, cp)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func expectedSurgeCurrent(peak, front, tail, tstart, t float64) float64 {
	x := t - tstart
	if x <= 0.0 {
		return 0.0
	}
	cfront := consts.TwoPi / (consts.CFKonst * front)
	tailAdvance := 0.5 * consts.CFKonst * front
	tau := consts.ETKonst * (tail - tailAdvance)
	if x > tailAdvance {
		x -= tailAdvance
		return peak * math.Exp(-x/tau)
	}
	return peak * 0.5 * (1.0 - math.Cos(x*cfront))
}

// A pure resistor with a surge injected across it has no storage element
// relaxation at all: the nodal solve is V = R*I exactly at every step, so
// this is a clean way to check the whole inject/solve pipeline without
// relying on a discretization tolerance.
func TestRunResistiveDividerMatchesAnalyticSurge(t *testing.T) {
	const ohms = 50.0
	const peak, front, tail, tstart = 10000.0, 1.2e-6, 50e-6, 0.0

	src := `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.NotEmpty(t, w.rows)

	for i, tv := range w.ts {
		want := ohms * expectedSurgeCurrent(peak, front, tail, tstart, tv)
		require.InDelta(t, want, w.rows[i][0], 1e-6*math.Max(1.0, math.Abs(want)))
	}
}

// An arrester held well below its gap voltage never conducts and leaves
// the network's solution unchanged from the same circuit without it.
func TestArresterIdempotentBelowGap(t *testing.T) {
	withArrester := `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
arrester 30000 40000 1.0 0.0
pairs 1 0
poles all
surge 100 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	withoutArrester := `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
surge 100 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	nlA, err := netlist.Parse(strings.NewReader(withArrester))
	require.NoError(t, err)
	ctxA, err := engine.Build(nlA, nil)
	require.NoError(t, err)
	wA := &recordingWriter{}
	require.NoError(t, ctxA.Run(wA))

	nlB, err := netlist.Parse(strings.NewReader(withoutArrester))
	require.NoError(t, err)
	ctxB, err := engine.Build(nlB, nil)
	require.NoError(t, err)
	wB := &recordingWriter{}
	require.NoError(t, ctxB.Run(wB))

	require.Equal(t, len(wA.rows), len(wB.rows))
	for i := range wA.rows {
		require.InDelta(t, wB.rows[i][0], wA.rows[i][0], 1e-9)
	}
}

// Resetting between two identical trial runs must reproduce bitwise
// identical peaks, the property the critical-current driver depends on.
func TestResetPurity(t *testing.T) {
	src := `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
arrester 30000 40000 1.0 0.0
pairs 1 0
poles all
surge 50000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 1
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	require.NoError(t, ctx.Run(nil))
	_, amps := ctx.PlotMeters()
	require.Len(t, amps, 1)
	peak1 := amps[0].VMax

	ctx.Reset()
	require.NoError(t, ctx.Run(nil))
	peak2 := amps[0].VMax

	require.Equal(t, peak1, peak2)
}

// Crossing DTSwitchTime exercises every device's ChangeTimeStep/line
// history collapse; the run must continue producing finite samples
// past the switch.
func TestRunCrossesSecondDTWithoutBlowingUp(t *testing.T) {
	src := `
2dt 1 1 30.0 0 0 2e-9 1e-6 3e-7
span 1
  cable 1 300.0 3e8 1.0
end
inductor 5.0 1e-4
pairs 1 0
poles all
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.NotEmpty(t, w.rows)

	sawPastSwitch := false
	for i, tv := range w.ts {
		require.False(t, math.IsNaN(w.rows[i][0]))
		require.False(t, math.IsInf(w.rows[i][0], 0))
		if tv >= 3e-7 {
			sawPastSwitch = true
		}
	}
	require.True(t, sawPastSwitch, "run should have crossed DTSwitchTime")
}

const flashingInsulatorNetlist = `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
insulator 100000 1000 1 1e-6
pairs 1 0
poles all
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`

// A plain Run (FlashHaltEnabled false, the default) must run the full
// trace to Tmax even after an insulator flashes over: only the
// critical-current driver truncates a trial early on a flash.
func TestRunContinuesToTMaxAfterFlashWhenHaltDisabled(t *testing.T) {
	nl, err := netlist.Parse(strings.NewReader(flashingInsulatorNetlist))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.True(t, ctx.FlashHalt, "insulator should have flashed under this surge")
	require.NotEmpty(t, w.ts)
	require.InDelta(t, 2e-6, w.ts[len(w.ts)-1], 1e-8, "run should reach Tmax despite the flash")
}

// The same netlist, with FlashHaltEnabled set (as RunCritical does for
// every trial), must truncate the trace at the flashover instead of
// continuing to Tmax.
func TestRunHaltsAtFlashWhenHaltEnabled(t *testing.T) {
	nl, err := netlist.Parse(strings.NewReader(flashingInsulatorNetlist))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)
	ctx.FlashHaltEnabled = true

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.True(t, ctx.FlashHalt)
	require.NotEmpty(t, w.ts)
	require.Less(t, w.ts[len(w.ts)-1], 1e-6, "run should have halted well short of Tmax")
}

// An arrbez device with nonzero lead inductance must converge and produce
// finite currents; this exercises the Newton loop's lead-inductor history
// bias path (pkg/pole's HistoryBias fold into the Thevenin target).
func TestArrbezWithLeadInductanceConvergesToFiniteCurrent(t *testing.T) {
	src := `
time 1 5e-9 2e-6
resistor 50.0
pairs 1 0
poles all
arrbez 30000 40000 1.0 1e-4 10.0 0
pairs 1 0
poles all
surge 50000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.NotEmpty(t, w.rows)
	for _, row := range w.rows {
		require.False(t, math.IsNaN(row[0]))
		require.False(t, math.IsInf(row[0], 0))
	}
}

// A 2dt run that never touches an insulator directly still exercises the
// DTSwitched wiring end to end (build.go -> run.go -> Insulator.Check);
// the dedicated pkg/device unit test covers the suspension itself with
// hand-set voltages instead of relying on the surge's exact waveform.
func TestInsulatorSurvivesDTSwitchWithoutPanicking(t *testing.T) {
	src := `
2dt 1 1 30.0 0 0 2e-9 1e-6 3e-7
span 1
  cable 1 300.0 3e8 1.0
end
insulator 100000 1000 1 1e3
pairs 1 0
poles all
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles all
meter 0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.NotEmpty(t, w.ts)
	for _, row := range w.rows {
		require.False(t, math.IsNaN(row[0]))
		require.False(t, math.IsInf(row[0], 0))
	}
}
