package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Insulator is a destructive-effect (DE) flashover integrator (§4.6): it
// accumulates (|V|-Vb)^beta*dT separately for each polarity, and shorts
// the gap out permanently once either accumulator reaches DeMax.
type Insulator struct {
	Parent   *pole.Pole
	From, To int

	CFO, VB, Beta, DeMax float64

	DePos, DeNeg float64
	Flashed      bool
	TFlash       float64
	SI           float64
}

// NewInsulator builds an insulator gap. vb and deMax are both given
// relative to a 100kV CFO reference and rescaled here to cfo.
func NewInsulator(parent *pole.Pole, from, to int, cfo, vbAt100kV, beta, deAt100kV float64) *Insulator {
	ins := &Insulator{
		Parent: parent, From: from, To: to,
		CFO: cfo, Beta: beta,
		VB:    vbAt100kV * cfo / 100.0e3,
		DeMax: deAt100kV * math.Pow(cfo/100.0e3, beta),
	}
	parent.Solve = true
	return ins
}

// Reset clears the DE "memory"; used between trial shots of the outer
// critical-current search.
func (ins *Insulator) Reset() {
	if ins.Flashed {
		ins.Parent.AddY(ins.From, ins.To, -consts.YShort)
	}
	ins.DePos, ins.DeNeg, ins.TFlash, ins.SI = 0, 0, 0, 0
	ins.Flashed = false
}

// Check integrates the destructive effect and flashes the gap over if
// either polarity's accumulator reaches DeMax, shorting it with YShort.
// dtSwitched suspends the DE integral for the collapsed second-dT
// interval, matching the original's dT_switched guard.
func (ins *Insulator) Check(t, dT float64, dtSwitched bool) bool {
	if ins.Flashed || dtSwitched {
		return false
	}
	p := ins.Parent
	volts := p.Voltage[ins.From] - p.Voltage[ins.To]
	mag := math.Abs(volts) - ins.VB
	if mag > 0.0 {
		deInc := math.Pow(mag, ins.Beta) * dT
		if volts >= 0.0 {
			ins.DePos += deInc
		} else {
			ins.DeNeg += deInc
		}
	}
	if ins.DePos >= ins.DeMax || ins.DeNeg >= ins.DeMax {
		ins.Flashed = true
		ins.TFlash = t
		p.AddY(ins.From, ins.To, consts.YShort)
		return true
	}
	return false
}

// SeverityIndex reports the per-unit severity of the worst polarity's
// accumulated DE, 1.0 once flashed.
func (ins *Insulator) SeverityIndex() float64 {
	if ins.Flashed {
		return 1.0
	}
	highest := ins.DePos
	if ins.DeNeg > highest {
		highest = ins.DeNeg
	}
	return math.Pow(highest/ins.DeMax, 1.0/ins.Beta)
}
