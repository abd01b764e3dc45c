package device

import (
	"math"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// Customer bundles a pole-top distribution transformer, its secondary
// service drop, and a house ground (§4.4's Ground, spawned internally)
// into the X2 coordination-current model from Dave Smith's IEEE papers:
// the transformer's primary terminal voltage is integrated and combined
// with the house-ground discharge current to estimate the current
// impressed on the customer's secondary wiring.
type Customer struct {
	Parent   *pole.Pole
	From, To int

	Ground *Ground

	Ki, Kv   float64
	integral float64

	Ix2, Ihg, Vp, Ix2Peak float64
}

// CustomerServiceDrop carries the secondary-circuit geometry needed to
// derive the Ki/Kv coordination coefficients; all lengths/radii in the
// same units as PrimL expects (meters, since PrimL is mu0/(2 pi) in H/m).
type CustomerServiceDrop struct {
	N          float64 // transformer turns ratio
	Lp         float64 // primary leakage inductance
	Ls1, Ls2   float64 // secondary leakage inductances, each leg
	Ra, Rn     float64 // phase and neutral conductor radii
	Dan, Daa   float64 // conductor spacings
	Length     float64
}

// NewCustomer builds a Customer, deriving Ki/Kv from the service-drop
// geometry and spawning its internal house Ground at (pole i, node k, 0).
func NewCustomer(parent *pole.Pole, from, to int, drop CustomerServiceDrop,
	rHG, rho, e0, lHG, dHG, lcm, length, dT float64) *Customer {

	lcm *= length
	la := consts.PrimL * drop.Length * (math.Log(2.0*drop.Length/drop.Ra) - 1.0)
	ln := consts.PrimL * drop.Length * (math.Log(2.0*drop.Length/drop.Rn) - 1.0)
	laa := consts.PrimL * drop.Length * (math.Log(2.0*drop.Length/drop.Daa) - 1.0)
	lan := consts.PrimL * drop.Length * (math.Log(2.0*drop.Length/drop.Dan) - 1.0)
	lfw := 4.0*drop.Lp/drop.N/drop.N + drop.Ls1 + drop.Ls2
	denom := 0.5*(drop.Ls1+drop.Ls2) + la + 2.0*ln + laa - 4.0*lan -
		0.5*(drop.Ls1-drop.Ls2)*(drop.Ls1-drop.Ls2)/(lfw+2.0*la-2.0*laa)
	ki := (ln - lan) / denom
	kv := (drop.Ls2 - drop.Ls1) / drop.N / (lfw + 2.0*la - 2.0*laa) / denom

	c := &Customer{Parent: parent, From: from, To: to}
	c.Ground = NewGround(parent, to, 0, rHG, rho, e0, lHG*dHG+lcm, dT)
	c.Ki = 2.0 * ki
	c.Kv = 2.0 * kv * dT
	parent.Solve = true
	return c
}

// Reset clears the peak-tracking and integral state; used between trial
// shots of the outer critical-current search.
func (c *Customer) Reset() {
	c.Ix2, c.Ihg, c.Vp, c.integral, c.Ix2Peak = 0, 0, 0, 0, 0
}

// Inject delegates to the internal house ground.
func (c *Customer) Inject() { c.Ground.Inject() }

// UpdateHistory integrates the primary transformer voltage and derives
// the secondary X2 coordination current, also updating the house ground
// (§4.4, §4.8).
func (c *Customer) UpdateHistory() {
	c.Ground.UpdateHistory()

	v := branchVoltage(c.Parent, c.From, c.To)
	i := c.Ground.Amps

	c.integral += v * c.Kv
	iNew := c.Ki*i + c.integral

	if math.Abs(i) > math.Abs(c.Ihg) {
		c.Ihg = i
	}
	if math.Abs(v) > math.Abs(c.Vp) {
		c.Vp = v
	}
	if math.Abs(iNew) > math.Abs(c.Ix2Peak) {
		c.Ix2Peak = iNew
	}
	c.Ix2 = iNew
}

func (c *Customer) ChangeTimeStep(firstDT, secondDT float64) {
	c.Kv *= secondDT / firstDT
	c.Ground.ChangeTimeStep(firstDT, secondDT)
}

func (c *Customer) RestoreTimeStep(firstDT, secondDT float64) {
	c.Kv *= firstDT / secondDT
	c.Ground.RestoreTimeStep(firstDT, secondDT)
}
