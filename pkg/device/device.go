// Package device implements the per-pole branch models: linear companion
// elements (resistor, inductor, capacitor, transformer), the impulse
// ground, surge sources, the two arrester families, insulator flashover
// integrators, and the customer/pipegap/meter instrumentation group.
package device

import "github.com/epri-oss/openetran-go/pkg/pole"

// Injector contributes this step's exogenous or history current into its
// parent pole's injection vector. Called once per inner re-solve pass.
type Injector interface {
	Inject()
}

// TimeInjector is an Injector whose current depends explicitly on
// simulation time rather than on stored history (surge, steepfront).
type TimeInjector interface {
	Inject(t float64)
}

// HistoryUpdater recomputes a device's stored history current from the
// just-accepted node voltages. Called once per accepted step.
type HistoryUpdater interface {
	UpdateHistory()
}

// TimeHistoryUpdater is a HistoryUpdater whose update also depends
// explicitly on simulation time and the active time step (the Cigre
// dynamic-conductance arrester).
type TimeHistoryUpdater interface {
	UpdateHistory(t, dT float64)
}

// StateChecker evaluates a device's nonlinear state machine after a
// solve and reports whether it changed Ybus, requiring a re-solve this
// step (arrester, pipegap). t is the current simulation time, dT the
// active time step.
type StateChecker interface {
	Check(t, dT float64) (changed bool)
}

// SecondDTAdjuster rescales a device's companion parameters when the
// simulation clock switches time step (§4.10).
type SecondDTAdjuster interface {
	ChangeTimeStep(firstDT, secondDT float64)
	RestoreTimeStep(firstDT, secondDT float64)
}

// branchVoltage returns V[from]-V[to] off a pole's voltage vector
// (1-based node indices, 0 is ground).
func branchVoltage(p *pole.Pole, from, to int) float64 {
	return p.Voltage[from] - p.Voltage[to]
}
