// Package pole implements the per-pole nodal admittance solver: Ybus
// assembly and factoring, the linear back-substitution stage, and the
// Thevenin-reduced Newton compensation loop over nonlinear (arrester) ports.
package pole

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/linalg"
	"github.com/epri-oss/openetran-go/pkg/span"
)

// NonlinearPort is implemented by any device that participates in the
// per-pole Thevenin compensation (the Bezier arrester family). From/To are
// 1-based node indices (0 is ground); SeriesR is the device's total series
// resistance r = 1/g + r_gap + r_L at the current state.
type NonlinearPort interface {
	From() int
	To() int
	SeriesR() float64
	Eval(v float64) (current, dcurrent float64)
	// HistoryBias returns the lead-inductor's stored-energy contribution
	// to this port's Thevenin target voltage, h*rl in solve_pole, zero
	// when the port has no lead inductance.
	HistoryBias() float64
}

// Pole owns one node's worth of the chain: its admittance matrix, LU
// factors, voltage/injection vectors, and (if nonlinear ports are
// attached) the Thevenin reduction and Newton workspace.
type Pole struct {
	Location int
	N        int // number of non-ground nodes

	Ybus  *linalg.Matrix
	dirty bool
	lu    *linalg.LU

	Solve bool // false: travelling-wave pass-through only

	Voltage   []float64 // length N+1, Voltage[0] == 0 always
	Injection []float64 // length N+1

	VMode []float64 // length N
	IMode []float64 // length N

	Ports  []NonlinearPort // backptr[0:NumNonlinear]
	Rthev  *mat.Dense

	Defn *span.Definition // used for the solve=false pass-through (Zm)
}

// New allocates a Pole with N non-ground nodes.
func New(location, n int) *Pole {
	return &Pole{
		Location:  location,
		N:         n,
		Ybus:      linalg.NewMatrix(n),
		dirty:     true,
		Solve:     false,
		Voltage:   make([]float64, n+1),
		Injection: make([]float64, n+1),
		VMode:     make([]float64, n),
		IMode:     make([]float64, n),
	}
}

// NumNonlinear returns the count of attached nonlinear ports.
func (p *Pole) NumNonlinear() int { return len(p.Ports) }

// AddY edits the Ybus entries for a shunt/series device between from and
// to (1-based, 0=ground), marking the pole dirty so the next Triang
// refactors. Matches the original add_y semantics exactly.
func (p *Pole) AddY(from, to int, y float64) {
	if from > 0 {
		p.Ybus.AddElement(from-1, from-1, y)
	}
	if to > 0 {
		p.Ybus.AddElement(to-1, to-1, y)
	}
	if from > 0 && to > 0 {
		p.Ybus.AddElement(from-1, to-1, -y)
		p.Ybus.AddElement(to-1, from-1, -y)
	}
	p.Solve = true
	p.dirty = true
}

// AddYMatrix adds a full phase-domain admittance matrix (e.g. a span's Yp)
// into this pole's Ybus, for a surge-impedance line termination at an
// open end. m is n x n where n == p.N.
func (p *Pole) AddYMatrix(m *mat.Dense) {
	for i := 0; i < p.N; i++ {
		for j := 0; j < p.N; j++ {
			p.Ybus.AddElement(i, j, m.At(i, j))
		}
	}
	p.Solve = true
	p.dirty = true
}

// RegisterPort attaches a nonlinear device to this pole's compensation
// set. Must only be called during setup.
func (p *Pole) RegisterPort(dev NonlinearPort) {
	p.Ports = append(p.Ports, dev)
	p.Solve = true
	p.dirty = true
}

// ZeroInjection clears the injection vector at the start of a step.
func (p *Pole) ZeroInjection() {
	for i := range p.Injection {
		p.Injection[i] = 0.0
	}
}

// Triang refactors Ybus if dirty, and rebuilds the Thevenin reduction for
// any attached nonlinear ports. Mirrors triang_pole.
func (p *Pole) Triang() error {
	if !p.dirty {
		return nil
	}
	snapshot := p.Ybus.Clone()
	p.lu = snapshot.Factorize(consts.YOpen)

	if len(p.Ports) > 0 {
		if err := p.buildRthev(); err != nil {
			return err
		}
	}
	p.dirty = false
	return nil
}

// buildRthev solves one LU back-substitution per nonlinear port to obtain
// its Thevenin-coupling column, then differences columns at each port's
// node pair, matching build_rthev.
func (p *Pole) buildRthev() error {
	k := len(p.Ports)
	cols := make([]*mat.VecDense, k)
	for i, port := range p.Ports {
		e := mat.NewVecDense(p.N, nil)
		if port.From() > 0 {
			e.SetVec(port.From()-1, 1.0)
		}
		if port.To() > 0 {
			e.SetVec(port.To()-1, e.AtVec(port.To()-1)-1.0)
		}
		cols[i] = p.lu.Solve(e)
	}
	rthev := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			from, to := p.Ports[j].From(), p.Ports[j].To()
			var vf, vt float64
			if from > 0 {
				vf = cols[i].AtVec(from - 1)
			}
			if to > 0 {
				vt = cols[i].AtVec(to - 1)
			}
			rthev.Set(i, j, vf-vt)
		}
	}
	p.Rthev = rthev
	return nil
}

// SolveLinear back-substitutes the injection vector against the current
// LU factors, yielding the open-circuit node voltages. If Solve is false
// the pole is a travelling-wave pass-through and VMode is computed
// directly from IMode instead (§4.3).
func (p *Pole) SolveLinear() []float64 {
	if !p.Solve {
		for i := 0; i < p.N; i++ {
			p.VMode[i] = p.IMode[i] * p.Defn.Zm[i] * 0.5
		}
		return nil
	}

	rhs := mat.NewVecDense(p.N, p.Injection[1:])
	x := p.lu.Solve(rhs)
	voc := make([]float64, p.N)
	for i := 0; i < p.N; i++ {
		voc[i] = x.AtVec(i)
		p.Voltage[i+1] = voc[i]
	}
	return voc
}

// portVoltage returns V[from]-V[to] for a 1-based node pair against an
// open-circuit voltage slice (0-based, ground implicit as 0).
func portVoltage(voc []float64, from, to int) float64 {
	var vf, vt float64
	if from > 0 {
		vf = voc[from-1]
	}
	if to > 0 {
		vt = voc[to-1]
	}
	return vf - vt
}

// SolveNonlinear runs the Newton compensation loop described in §4.4 when
// nonlinear ports are attached, then repeats the linear solve once with
// the solved port currents injected back. Returns the per-port solved
// currents (in port order) for the caller to apply as history updates.
func (p *Pole) SolveNonlinear(voc []float64) ([]float64, error) {
	k := len(p.Ports)
	if k == 0 {
		return nil, nil
	}

	vocPort := make([]float64, k)
	v := make([]float64, k)
	r := make([]float64, k)
	for i, port := range p.Ports {
		vocPort[i] = portVoltage(voc, port.From(), port.To()) + port.HistoryBias()
		r[i] = port.SeriesR()
		v[i] = vocPort[i] // initial guess: open-circuit voltage
	}

	aug := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			aug.Set(i, j, p.Rthev.At(i, j))
		}
		aug.Set(i, i, aug.At(i, i)+r[i])
	}

	bezval := make([]float64, k)
	bezd1 := make([]float64, k)

	count := 0
	errx, errf := math.MaxFloat64, math.MaxFloat64
	for count < consts.MaxNRIter && (errx > consts.NRTolX || errf > consts.NRTolF) {
		for i, port := range p.Ports {
			bezval[i], bezd1[i] = port.Eval(v[i])
		}

		jac := mat.NewDense(k, k, nil)
		f := mat.NewVecDense(k, nil)
		for i := 0; i < k; i++ {
			sum := 0.0
			for j := 0; j < k; j++ {
				sum += aug.At(i, j) * bezval[j]
				jv := aug.At(i, j)
				if i == j {
					jv += 1.0 / bezd1[i]
				}
				jac.Set(i, j, jv)
			}
			f.SetVec(i, vocPort[i]-v[i]-sum)
		}

		var jacLU mat.LU
		jacLU.Factorize(jac)
		var delta mat.VecDense
		if err := jacLU.SolveVecTo(&delta, false, f); err != nil {
			return nil, oeerr.Wrap(oeerr.ErrLTStopped, err, "newton jacobian solve failed")
		}

		errx, errf = 0.0, 0.0
		for i := 0; i < k; i++ {
			dv := delta.AtVec(i) / bezd1[i]
			v[i] += dv
			errx += math.Abs(dv)
			errf += math.Abs(f.AtVec(i))
		}
		count++
	}
	if count >= consts.MaxNRIter && (errx > consts.NRTolX || errf > consts.NRTolF) {
		return nil, oeerr.New(oeerr.ErrLTStopped, "newton compensation failed to converge at pole %d", p.Location)
	}

	for i, port := range p.Ports {
		bezval[i], _ = port.Eval(v[i])
		if port.From() > 0 {
			p.Injection[port.From()] -= bezval[i]
		}
		if port.To() > 0 {
			p.Injection[port.To()] += bezval[i]
		}
	}

	rhs := mat.NewVecDense(p.N, p.Injection[1:])
	x := p.lu.Solve(rhs)
	for i := 0; i < p.N; i++ {
		p.Voltage[i+1] = x.AtVec(i)
	}

	return bezval, nil
}
