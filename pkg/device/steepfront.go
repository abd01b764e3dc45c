package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/bezier"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

const (
	sfDXLow  = 0.300
	sfDXHigh = 0.005
	sfDKnot  = 1.005
)

// SteepFront is a current source whose waveform is a Bezier-fitted
// concave front (steeper than the ordinary 1-cos Surge) driven by a
// target front-of-wave steepness, followed by the same exponential tail
// (§4.9). Like Surge, it is a pure function of elapsed time and never
// touches Ybus.
type SteepFront struct {
	Parent   *pole.Pole
	From, To int

	Peak, Front, Tail, TStart, PUSteepness float64
	Steepness                             float64

	shape *bezier.Fit
}

// NewSteepFront builds a steep-front current source. puSteepness is the
// per-unit front-of-wave steepness (kA/us normalized by peak/front);
// Steepness = puSteepness*peak/front.
func NewSteepFront(parent *pole.Pole, from, to int, peak, front, tail, tstart, puSteepness float64) *SteepFront {
	s := &SteepFront{Parent: parent, From: from, To: to}
	s.Move(from, to, peak, front, tail, tstart, puSteepness)
	parent.Solve = true
	return s
}

// Move rebuilds the Bezier front shape; it may be called repeatedly
// while the outer critical-current search rescales the surge.
func (s *SteepFront) Move(from, to int, peak, front, tail, tstart, puSteepness float64) {
	s.From, s.To = from, to
	s.Peak, s.Front, s.Tail, s.TStart, s.PUSteepness = peak, front, tail, tstart, puSteepness
	s.Steepness = puSteepness * peak / front

	var xpts, ypts []float64
	add := func(x, y float64) { xpts = append(xpts, x); ypts = append(ypts, y) }

	t10 := 0.78 * front
	t30 := 1.16 * front
	t90 := 1.76 * front

	add(0.0, 0.0)
	add(t10, 0.10*peak)
	add(t30, 0.30*peak)
	add(t30*sfDKnot, 0.30*peak*sfDKnot)

	dx := sfDXLow * peak / s.Steepness
	add(t90-dx, (0.90-sfDXLow)*peak)
	add(t90, 0.90*peak)

	dx = sfDXHigh * peak / s.Steepness
	add(t90+dx, (0.90+sfDXHigh)*peak)

	x := t90 + dx*0.1/sfDXHigh
	add(x, peak)
	x *= 1.2
	add(x, peak)
	xstart := x

	t50 := tail - xstart
	tau := consts.ETKonst * t50
	dx = 0.5 * tau

	for n := 0; n < 6; n++ {
		x += dx
		add(x, peak*math.Exp(-(x-xstart)/tau))
	}
	x *= 10.0
	add(x, peak*math.Exp(-(x-xstart)/tau))

	s.shape = bezier.Build(xpts, ypts, false)
}

// Inject evaluates the fitted front/tail shape at time t and adds the
// resulting current into the pole's injection vector.
func (s *SteepFront) Inject(t float64) {
	x := t - s.TStart
	if x <= 0.0 {
		return
	}
	i := s.shape.Eval(x)
	s.Parent.Injection[s.From] += i
	s.Parent.Injection[s.To] -= i
}
