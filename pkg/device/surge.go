package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Surge is an injected current source with a 1-cosine front and an
// exponential tail, independent of the network solution (§4.9). It is
// purely a source: it never stamps Ybus and carries no history, only a
// per-step current computed from elapsed time.
type Surge struct {
	Parent   *pole.Pole
	From, To int

	Peak, Front, Tail, TStart float64

	cfront, tailAdvance, tau float64
}

// NewSurge builds a current-surge source. front and tail are the 1-cos
// front time and the overall time-to-half-value, both in the same units
// as the simulation clock; tstart offsets the waveform's own time origin.
func NewSurge(parent *pole.Pole, from, to int, peak, front, tail, tstart float64) *Surge {
	s := &Surge{Parent: parent, From: from, To: to, Peak: peak, Front: front, Tail: tail, TStart: tstart}
	s.Move(from, to, peak, front, tail, tstart)
	parent.Solve = true
	return s
}

// Move recomputes the derived waveform coefficients; it may be called
// repeatedly while the outer critical-current search relocates or rescales
// the surge between trial shots.
func (s *Surge) Move(from, to int, peak, front, tail, tstart float64) {
	s.From, s.To = from, to
	s.Peak, s.Front, s.Tail, s.TStart = peak, front, tail, tstart
	s.cfront = consts.TwoPi / (consts.CFKonst * front)
	s.tailAdvance = 0.5 * consts.CFKonst * front
	s.tau = consts.ETKonst * (tail - s.tailAdvance)
}

// Inject computes the surge current at time t and adds it to the pole's
// injection vector. Unlike the trapped-history devices, this has no
// UpdateHistory counterpart: the waveform is a pure function of time.
func (s *Surge) Inject(t float64) {
	x := t - s.TStart
	if x <= 0.0 {
		return
	}
	var i float64
	if x > s.tailAdvance {
		x -= s.tailAdvance
		i = s.Peak * math.Exp(-x/s.tau)
	} else {
		i = s.Peak * 0.5 * (1.0 - math.Cos(x*s.cfront))
	}
	s.Parent.Injection[s.From] += i
	s.Parent.Injection[s.To] -= i
}
