package device_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/device"
	"github.com/epri-oss/openetran-go/pkg/pole"
)

// While dtSwitched is true the DE integral must not advance at all, even
// under a voltage well past VB that would otherwise flash the gap in a
// single step; this is the same suspension LPM.Check already honors.
func TestInsulatorCheckSuspendsDEIntegralWhileDTSwitched(t *testing.T) {
	p := pole.New(1, 1)
	ins := device.NewInsulator(p, 1, 0, 100000, 1000, 1.0, 1e-6)
	p.Voltage[1] = 50000 // far above VB=1000

	for i := 0; i < 1000; i++ {
		flashed := ins.Check(float64(i)*5e-9, 5e-9, true)
		require.False(t, flashed)
	}
	require.Zero(t, ins.DePos)
	require.Zero(t, ins.DeNeg)
	require.False(t, ins.Flashed)

	flashed := ins.Check(5e-6, 5e-9, false)
	require.True(t, flashed, "DE integral should resume and immediately exceed DeMax at this voltage")
	require.True(t, ins.Flashed)
}

// With dtSwitched always false, the same sustained overvoltage
// eventually reaches DeMax and shorts the gap via YShort.
func TestInsulatorCheckFlashesWithoutDTSwitch(t *testing.T) {
	p := pole.New(1, 1)
	ins := device.NewInsulator(p, 1, 0, 100000, 1000, 1.0, 1e-6)
	p.Voltage[1] = 50000

	flashed := ins.Check(0, 5e-9, false)
	require.True(t, flashed)
	require.True(t, ins.Flashed)
	require.Equal(t, 0.0, ins.TFlash)
}
