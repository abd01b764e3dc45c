package plot_test

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/device"
	"github.com/epri-oss/openetran-go/pkg/pole"
	"github.com/epri-oss/openetran-go/pkg/plot"
)

func testMeters(t *testing.T) (volt, amp *device.Meter) {
	t.Helper()
	p := pole.New(1, 2)
	volt = device.NewVoltmeter(1, 1, 0, func() float64 { return p.Voltage[1] })
	amp = device.NewAmmeter(device.MeterArresterAmps, 1, 1, 0, func() float64 { return 42.0 })
	return volt, amp
}

func TestMeterName(t *testing.T) {
	volt, amp := testMeters(t)
	require.Equal(t, "P1:1-0", plot.MeterName(volt))
	require.Equal(t, "P1:1-IARR", plot.MeterName(amp))
}

func TestCSVWriterHeaderAndRows(t *testing.T) {
	volt, amp := testMeters(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := plot.NewCSV(path, []*device.Meter{volt, amp})
	require.NoError(t, err)
	require.NoError(t, w.WriteStep(0.0, []float64{1.5, 2.5}))
	require.NoError(t, w.WriteStep(1e-6, []float64{3.5, 4.5}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Time,P1:1-0,P1:1-IARR", lines[0])
	require.Equal(t, "0,1.5,2.5", lines[1])
}

func TestTabWriterUsesTabSeparator(t *testing.T) {
	volt, amp := testMeters(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	w, err := plot.NewTab(path, []*device.Meter{volt, amp})
	require.NoError(t, err)
	require.NoError(t, w.WriteStep(0.0, []float64{1.0, 2.0}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "Time\tP1:1-0\tP1:1-IARR"))
}

func TestELTWriterHeaderAndStepCount(t *testing.T) {
	volt, amp := testMeters(t)
	path := filepath.Join(t.TempDir(), "out.elt")

	w, err := plot.NewELT(path, 5e-9, 5e-9, 5e-9, []*device.Meter{volt}, []*device.Meter{amp}, []string{"a test run"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.WriteStep(float64(i)*5e-9, []float64{1.0, 2.0}))
	}
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := bufio.NewReader(f)
	var size uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &size))
	require.EqualValues(t, 496, size)

	sig := make([]byte, 16)
	_, err = io.ReadFull(r, sig)
	require.NoError(t, err)
	require.Equal(t, "OpenETran 1.00", strings.TrimRight(string(sig), "\x00"))

	skip := make([]byte, 52) // VerMajor through DDeltaT
	_, err = io.ReadFull(r, skip)
	require.NoError(t, err)
	var nstep uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &nstep))
	require.EqualValues(t, 3, nstep)
}
