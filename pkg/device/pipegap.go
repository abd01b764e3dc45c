package device

import (
	"math"

	"github.com/epri-oss/openetran-go/pkg/pole"
)

// PipeGap is a gapped sparkover branch with a single resistive slope and
// no lead inductance or energy/charge bookkeeping, used for pipe-type
// cable predischarge gaps (§4.6, structurally the lightweight sibling of
// Arrester).
type PipeGap struct {
	Parent   *pole.Pole
	From, To int

	VKnee, RSlope, IBias, y float64

	Conducting  bool
	iPast, Amps float64
	IPeak       float64
}

// NewPipeGap builds a pipe-gap sparkover branch.
func NewPipeGap(parent *pole.Pole, from, to int, vKnee, rSlope float64) *PipeGap {
	pg := &PipeGap{
		Parent: parent, From: from, To: to,
		VKnee: vKnee, RSlope: rSlope,
		IBias: vKnee / rSlope, y: 1.0 / rSlope,
	}
	parent.Solve = true
	pg.Reset()
	return pg
}

// Reset clears the peak-current and conduction state; used between trial
// shots of the outer critical-current search.
func (pg *PipeGap) Reset() {
	if pg.Conducting {
		pg.Parent.AddY(pg.From, pg.To, -pg.y)
	}
	pg.IPeak, pg.iPast, pg.Amps = 0, 0, 0
	pg.Conducting = false
}

// Inject adds the previous step's gap current into the pole, if presently
// conducting.
func (pg *PipeGap) Inject() {
	if !pg.Conducting {
		return
	}
	pg.Parent.Injection[pg.From] -= pg.iPast
	pg.Parent.Injection[pg.To] += pg.iPast
}

// Check evaluates sparkover or clearing against the just-solved branch
// voltage and reports whether a forced re-solve of this step is required.
func (pg *PipeGap) Check(t, dT float64) bool {
	p := pg.Parent
	volts := p.Voltage[pg.From] - p.Voltage[pg.To]
	posNow := volts > 0.0

	if pg.Conducting {
		pg.Amps = volts*pg.y + pg.iPast
		if math.Abs(pg.Amps) > math.Abs(pg.IPeak) {
			pg.IPeak = pg.Amps
		}
		if math.Abs(volts) < pg.VKnee {
			pg.Conducting = false
			p.AddY(pg.From, pg.To, -pg.y)
			pg.iPast = 0.0
		}
		return false
	}

	if math.Abs(volts) > pg.VKnee {
		pg.Conducting = true
		p.AddY(pg.From, pg.To, pg.y)
		if posNow {
			pg.iPast = -pg.IBias
		} else {
			pg.iPast = pg.IBias
		}
		return true
	}
	return false
}
