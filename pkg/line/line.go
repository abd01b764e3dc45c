// Package line implements the travelling-wave (Bergeron) history model
// that couples the two poles at a span's ends.
package line

import (
	"math"

	"github.com/epri-oss/openetran-go/pkg/span"
)

// Line connects exactly two poles via a shared Definition. It owns two
// N x Steps history matrices (row-major, one row per conductor).
type Line struct {
	Defn   *span.Definition
	Length float64

	Steps      int // travel_steps = round(length / v / dT)
	allocSteps int // preserved across a second-dT collapse/restore

	histLeft  [][]float64 // [conductor][slot]
	histRight [][]float64

	LeftPole, RightPole int // stable pole handles
}

// New allocates a Line for defn over the given length, at time step dT.
func New(defn *span.Definition, length float64, dT float64, leftPole, rightPole int) *Line {
	steps := int(math.Round(length / defn.WaveVelocity / dT))
	if steps < 1 {
		steps = 1
	}
	l := &Line{
		Defn: defn, Length: length, Steps: steps, allocSteps: steps,
		LeftPole: leftPole, RightPole: rightPole,
	}
	l.histLeft = make([][]float64, defn.N)
	l.histRight = make([][]float64, defn.N)
	for i := 0; i < defn.N; i++ {
		l.histLeft[i] = make([]float64, steps)
		l.histRight[i] = make([]float64, steps)
	}
	return l
}

// InitHistory fills every history slot with the trapped-charge dc current
// idc[i] = -Ym[i,i]*vm[i], the steady-state condition sustaining vp_offset.
func (l *Line) InitHistory() {
	for i := 0; i < l.Defn.N; i++ {
		idc := -l.Defn.Ym[i] * l.Defn.VM[i]
		for k := 0; k < l.Steps; k++ {
			l.histLeft[i][k] = idc
			l.histRight[i][k] = idc
		}
	}
}

// slot returns the circular buffer index for the given global step.
func (l *Line) slot(step int) int { return step % l.Steps }

// InjectModal subtracts the due history-current entries into the left and
// right modal injection vectors (index 0..N-1), the non-network-mode form.
func (l *Line) InjectModal(step int, leftInj, rightInj []float64) {
	k := l.slot(step)
	for i := 0; i < l.Defn.N; i++ {
		leftInj[i] -= l.histLeft[i][k]
		rightInj[i] -= l.histRight[i][k]
	}
}

// UpdateHistory applies the Bergeron relation given this step's modal
// voltages at each end, writing the next history slot.
func (l *Line) UpdateHistory(step int, vLeft, vRight []float64) {
	k := l.slot(step)
	for i := 0; i < l.Defn.N; i++ {
		y := l.Defn.Ym[i]
		ilr := vLeft[i]*y + l.histLeft[i][k]
		irl := vRight[i]*y + l.histRight[i][k]
		l.histLeft[i][k] = -vRight[i]*y - irl
		l.histRight[i][k] = -vLeft[i]*y - ilr
	}
}

// CollapseForSecondDT snapshots the entry about to be read into slot 0 and
// shrinks the buffer to length 1, per the second-dT mechanism (§4.10).
func (l *Line) CollapseForSecondDT(step int) {
	k := l.slot(step)
	for i := 0; i < l.Defn.N; i++ {
		l.histLeft[i][0] = l.histLeft[i][k]
		l.histRight[i][0] = l.histRight[i][k]
		l.histLeft[i] = l.histLeft[i][:1]
		l.histRight[i] = l.histRight[i][:1]
	}
	l.Steps = 1
}

// RestoreFirstDT reinstates the pre-switch buffer length. The re-extended
// slots are zero-filled, since no flashover logic or history use occurs
// while dT_switched is true beyond slot 0.
func (l *Line) RestoreFirstDT() {
	for i := range l.histLeft {
		l.histLeft[i] = append(l.histLeft[i], make([]float64, l.allocSteps-1)...)
		l.histRight[i] = append(l.histRight[i], make([]float64, l.allocSteps-1)...)
	}
	l.Steps = l.allocSteps
}
