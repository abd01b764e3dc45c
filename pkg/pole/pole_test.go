package pole_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/pole"
)

// linearPort is a NonlinearPort whose Eval is exactly linear (current =
// g*v), so SolveNonlinear's Newton loop converges to a value with a known
// closed form: v = (voc + bias) / (1 + (rthev+r)*g). Used to isolate the
// effect of HistoryBias from the rest of the Newton machinery.
type linearPort struct {
	from, to int
	r, g     float64
	bias     float64
}

func (p *linearPort) From() int     { return p.from }
func (p *linearPort) To() int       { return p.to }
func (p *linearPort) SeriesR() float64 { return p.r }
func (p *linearPort) HistoryBias() float64 { return p.bias }
func (p *linearPort) Eval(v float64) (float64, float64) { return p.g * v, p.g }

// A lead inductor's stored history current must bias the Thevenin target
// voltage by h*rl (solve_pole's voc[i] += aptr->h*aptr->rl), not just seed
// the Newton initial guess, since the same vocPort[i] is reused as the
// fixed residual target on every Newton iteration.
func TestSolveNonlinearFoldsHistoryBiasIntoThevenonTarget(t *testing.T) {
	const g0 = 1.0 / 1000.0 // shunt conductance to ground at node 1
	const iInj = 100.0
	const rPort = 50.0
	const gDev = 1.0 / 2000.0
	const bias = 500.0

	build := func(bias float64) float64 {
		p := pole.New(1, 1)
		p.AddY(1, 0, g0)
		port := &linearPort{from: 1, to: 0, r: rPort, g: gDev, bias: bias}
		p.RegisterPort(port)
		require.NoError(t, p.Triang())

		p.Injection[1] = iInj
		voc := p.SolveLinear()
		cur, err := p.SolveNonlinear(voc)
		require.NoError(t, err)
		require.Len(t, cur, 1)
		// The port's solved current is g*v, so this recovers the Newton port
		// voltage v; the node voltage also carries the series-r drop.
		return cur[0] / gDev
	}

	vocLin := iInj / g0
	rthev := 1.0 / g0
	denom := 1.0 + (rthev+rPort)*gDev

	withoutBias := build(0)
	withBias := build(bias)

	require.InDelta(t, vocLin/denom, withoutBias, 1e-6)
	require.InDelta(t, (vocLin+bias)/denom, withBias, 1e-6)
	require.InDelta(t, bias/denom, withBias-withoutBias, 1e-6)
}
