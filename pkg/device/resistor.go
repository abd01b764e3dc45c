package device

import "github.com/epri-oss/openetran-go/pkg/pole"

// Resistor is a pure shunt/series conductance, contributing only a fixed
// Ybus edit at setup; it carries no history and never participates in a
// step beyond that one-time edit.
type Resistor struct {
	Parent   *pole.Pole
	From, To int
	Ohms     float64
}

// NewResistor builds a resistor and stamps its conductance into the
// parent pole's Ybus immediately.
func NewResistor(parent *pole.Pole, from, to int, ohms float64) *Resistor {
	r := &Resistor{Parent: parent, From: from, To: to, Ohms: ohms}
	parent.AddY(from, to, 1.0/ohms)
	return r
}
