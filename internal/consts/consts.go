package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)
)

// Domain constants for the EMT transient solver.
const (
	TwoPi   = 6.2831853
	Epsilon = 1e-5
	VMin    = 1e-3
	YShort  = 1e3  // Ybus edit used to short a flashed insulator
	YOpen   = 1e-9 // floor for a zero Ybus diagonal before factoring
	Light   = 3e8  // default wave velocity, m/s

	PrimL        = 2e-7 // mu0/(2 pi), used in the customer service-drop inductance formula
	DefaultLeadR = 0.00635

	// Bezier front/tail shaping constants for Surge and Steepfront.
	CFKonst = 2.815863
	CTKonst = 4.0
	ETKonst = 1.442695

	MaxPoleNodes = 16
	MaxWiresHit  = 15

	NRTolX     = 1e-8
	NRTolF     = 1e-8
	MaxNRIter  = 100

	OpenCircuitG  = 1e-7
	ShortCircuitG = 1e6

	NewArrIref = 5.4e3
	NewArrTref = 80.0

	// Cigre median first-stroke parameters. The critical-current driver
	// does not use them; it takes front and tail from the netlist surge.
	QMedianFirst    = 4.65
	IMedianFirst    = 31.10
	T3090First      = 3.83

	MinStroke  = 3e3
	MaxStroke  = 500e3
	MaxBrentIter = 200
	BrentTolA  = 1.0

	// MaxInnerResolve bounds the arrester/pipegap state-change re-solve
	// loop within one step; exceeding it aborts the step. A single device
	// turning on twice within one step is caught before this bound.
	MaxInnerResolve = 50
)
