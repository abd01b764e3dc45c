// Package span computes the modal decomposition of a multi-conductor
// overhead span or single-conductor cable: the surge-impedance matrix Zp,
// its eigenvector (modal) transform, and the diagonal modal impedance Zm.
package span

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/epri-oss/openetran-go/internal/consts"
	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/linalg"
)

// Conductor describes one phase conductor's geometry and initial voltage.
type Conductor struct {
	Height float64 // height above ground, m
	X      float64 // horizontal position, m
	Radius float64 // effective radius, m
	V0     float64 // initial phase voltage
}

// Definition is the immutable result of span setup: modal matrices and
// wave velocity, shared read-only by every Line built from it.
type Definition struct {
	N           int
	Zp          *mat.Dense // phase surge impedance, N x N
	Yp          *mat.Dense // Zp^-1
	Ti          *mat.Dense // eigenvectors of Zp, ascending eigenvalue order
	Tv          *mat.Dense // Tvt^T
	Tvt         *mat.Dense // Ti^-1
	Zm          []float64  // diagonal modal impedance
	Ym          []float64  // 1/Zm
	VPOffset    []float64  // initial phase voltages
	VM          []float64  // initial modal voltages, Tvt*VPOffset
	WaveVelocity float64
}

// diagTol bounds the off-diagonal residue discarded when forming Zm.
const diagTol = 1e-6

// FromConductors builds a Definition for an overhead multi-conductor span
// using the surge-impedance formulas of the original transform_conductors.
func FromConductors(cs []Conductor, waveVelocity float64) (*Definition, error) {
	n := len(cs)
	if n == 0 {
		return nil, oeerr.New(oeerr.ErrMissingConductor, "span has no conductors")
	}
	for i, c := range cs {
		if c.Radius <= 0 {
			return nil, oeerr.New(oeerr.ErrRadius, "conductor %d has non-positive radius", i)
		}
		if c.Height <= 0 {
			return nil, oeerr.New(oeerr.ErrHeight, "conductor %d has non-positive height", i)
		}
	}

	zp := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		zp.Set(i, i, 60.0*math.Log(2.0*cs[i].Height/cs[i].Radius))
		for j := i + 1; j < n; j++ {
			dx := cs[i].X - cs[j].X
			dy := cs[i].Height - cs[j].Height
			if math.Abs(dx) < 0.001 && math.Abs(dy) < 0.001 {
				return nil, oeerr.New(oeerr.ErrOverlap, "conductors %d and %d overlap", i, j)
			}
			hs := cs[i].Height + cs[j].Height
			num := math.Sqrt(dx*dx + hs*hs)
			den := math.Sqrt(dx*dx + dy*dy)
			z := 60.0 * math.Log(num/den)
			zp.Set(i, j, z)
			zp.Set(j, i, z)
		}
	}

	vpOffset := make([]float64, n)
	for i, c := range cs {
		vpOffset[i] = c.V0
	}

	if waveVelocity == 0 {
		waveVelocity = consts.Light
	}
	return buildFromZp(zp, vpOffset, waveVelocity)
}

// FromCable builds a diagonal single-conductor definition, matching the
// original's read_cables shortcut (Ti=Tv=Tvt=identity, Zp=Zm=zSurge*I).
func FromCable(n int, zSurge, vProp, vpf float64) (*Definition, error) {
	if n <= 0 {
		return nil, oeerr.New(oeerr.ErrCablePhases, "cable must have at least one conductor")
	}
	zp := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		zp.Set(i, i, zSurge)
	}
	vpOffset := make([]float64, n)
	for i := range vpOffset {
		vpOffset[i] = vpf
	}
	waveVelocity := vProp
	if waveVelocity == 0 {
		waveVelocity = consts.Light
	}

	ti := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		ti.Set(i, i, 1.0)
	}
	zm := make([]float64, n)
	ym := make([]float64, n)
	for i := 0; i < n; i++ {
		zm[i] = zSurge
		ym[i] = 1.0 / zSurge
	}
	yp, err := linalg.Invert(zp)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrMathCalc, err, "cable impedance inversion failed")
	}
	vm := make([]float64, n)
	copy(vm, vpOffset)

	return &Definition{
		N: n, Zp: zp, Yp: yp, Ti: ti, Tv: ti, Tvt: ti,
		Zm: zm, Ym: ym, VPOffset: vpOffset, VM: vm, WaveVelocity: waveVelocity,
	}, nil
}

func buildFromZp(zp *mat.Dense, vpOffset []float64, waveVelocity float64) (*Definition, error) {
	n, _ := zp.Dims()

	eig, err := linalg.EigenSymmetric(zp)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrMathCalc, err, "span eigendecomposition failed")
	}
	ti := eig.Vectors

	tvt, err := linalg.Invert(ti)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrMathCalc, err, "modal transform inversion failed")
	}
	tv := mat.DenseCopyOf(tvt.T())

	var tmp, zmFull mat.Dense
	tmp.Mul(ti.T(), zp)
	zmFull.Mul(&tmp, ti)

	zm := make([]float64, n)
	ym := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && math.Abs(zmFull.At(i, j)) > diagTol*math.Abs(zmFull.At(i, i)) {
				// Off-diagonal residue beyond tolerance is discarded per spec.
				continue
			}
		}
		zm[i] = zmFull.At(i, i)
		ym[i] = 1.0 / zm[i]
	}

	yp, err := linalg.Invert(zp)
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrMathCalc, err, "phase impedance inversion failed")
	}

	vm := make([]float64, n)
	vmVec := mat.NewVecDense(n, nil)
	vmVec.MulVec(tvt, mat.NewVecDense(n, vpOffset))
	for i := 0; i < n; i++ {
		vm[i] = vmVec.AtVec(i)
	}

	return &Definition{
		N: n, Zp: zp, Yp: yp, Ti: ti, Tv: tv, Tvt: tvt,
		Zm: zm, Ym: ym, VPOffset: vpOffset, VM: vm, WaveVelocity: waveVelocity,
	}, nil
}
