package device

import "math"

// MeterKind distinguishes a voltmeter (branch voltage between two pole
// nodes) from the several ammeter flavors, each tapping a different
// device's already-computed current field (§4.2, §6).
type MeterKind int

const (
	MeterVolt MeterKind = iota
	MeterArresterAmps
	MeterGroundAmps
	MeterHouseGroundAmps
	MeterX2Amps
	MeterPipeGapAmps
)

// Meter samples a single scalar quantity once per accepted step and
// tracks its largest-magnitude value (§4.2). A voltmeter is built from
// two node-voltage readers; an ammeter wraps a closure over whatever
// device field it measures, replacing the original's raw double pointer.
type Meter struct {
	Kind     MeterKind
	Pole     int
	From, To int

	sample func() float64
	VMax   float64
}

// NewVoltmeter builds a meter reading V[from]-V[to] at the given pole.
func NewVoltmeter(pole, from, to int, read func() float64) *Meter {
	return &Meter{Kind: MeterVolt, Pole: pole, From: from, To: to, sample: read}
}

// NewAmmeter builds a meter reading an arbitrary device's current field.
func NewAmmeter(kind MeterKind, pole, from, to int, read func() float64) *Meter {
	return &Meter{Kind: kind, Pole: pole, From: from, To: to, sample: read}
}

// Reset zeroes the recorded peak; used between trial shots of the outer
// critical-current search.
func (m *Meter) Reset() { m.VMax = 0.0 }

// UpdatePeak samples the measured quantity and keeps it if its magnitude
// exceeds the previously recorded peak.
func (m *Meter) UpdatePeak() {
	v := m.sample()
	if math.Abs(v) > math.Abs(m.VMax) {
		m.VMax = v
	}
}

// Sample returns the instantaneous reading without touching the peak,
// for per-step plot-file output.
func (m *Meter) Sample() float64 { return m.sample() }
