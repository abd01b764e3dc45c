package device

import "github.com/epri-oss/openetran-go/pkg/pole"

// Capacitor is a trapezoidal companion model: y=2C/dT, with history
// current h' = 2y*(v_to - v_from) - h.
type Capacitor struct {
	Parent   *pole.Pole
	From, To int
	Farads   float64

	y float64
	h float64
}

// NewCapacitor builds and stamps a Capacitor at the given time step.
func NewCapacitor(parent *pole.Pole, from, to int, farads, dT float64) *Capacitor {
	c := &Capacitor{Parent: parent, From: from, To: to, Farads: farads}
	c.recompute(dT)
	parent.AddY(from, to, c.y)
	return c
}

func (d *Capacitor) recompute(dT float64) { d.y = 2.0 * d.Farads / dT }

func (d *Capacitor) Inject() {
	d.Parent.Injection[d.From] -= d.h
	d.Parent.Injection[d.To] += d.h
}

func (d *Capacitor) UpdateHistory() {
	v := branchVoltage(d.Parent, d.From, d.To)
	d.h = 2.0*d.y*(-v) - d.h
}

func (d *Capacitor) ChangeTimeStep(firstDT, secondDT float64) {
	oldY := d.y
	_ = firstDT
	d.recompute(secondDT)
	d.Parent.AddY(d.From, d.To, d.y-oldY)
	d.h *= firstDT / secondDT
}

func (d *Capacitor) RestoreTimeStep(firstDT, secondDT float64) {
	oldY := d.y
	_ = secondDT
	d.recompute(firstDT)
	d.Parent.AddY(d.From, d.To, d.y-oldY)
}
