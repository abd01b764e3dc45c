package netlist_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/netlist"
)

func TestParseUniformHeader(t *testing.T) {
	src := `
2 1 30.0 0 1 5e-9 50e-6
span 1
  cable 1 300.0 3e8 1.0
end
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles 1
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, netlist.ModeUniform, nl.Header.Mode)
	require.Equal(t, 2, nl.Header.N)
	require.Equal(t, 1, nl.Header.P)
	require.False(t, nl.Header.LeftZ)
	require.True(t, nl.Header.RightZ)
	require.InDelta(t, 5e-9, nl.Header.DT, 1e-15)
	require.InDelta(t, 50e-6, nl.Header.TMax, 1e-12)

	require.Len(t, nl.Spans, 1)
	sb := nl.Spans["1"]
	require.NotNil(t, sb)
	require.Len(t, sb.Cables, 1)
	require.InDelta(t, 300.0, sb.Cables[0].ZSurge, 1e-9)

	require.Len(t, nl.Devices, 1)
	db := nl.Devices[0]
	require.Equal(t, "surge", db.Kind)
	require.Equal(t, []float64{10000, 1.2e-6, 50e-6, 0}, db.Params)
	require.Equal(t, [][2]int{{1, 0}}, db.Pairs)
	require.Equal(t, []int{1}, db.ExpandPoles(2))
}

func TestParseTimeHeader(t *testing.T) {
	src := `
time 3 1e-8 1e-5
resistor 50.0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, netlist.ModeTime, nl.Header.Mode)
	require.Equal(t, 3, nl.Header.N)

	require.Len(t, nl.Devices, 1)
	require.Equal(t, []int{1, 2, 3}, nl.Devices[0].ExpandPoles(3))
}

func Test2DTHeader(t *testing.T) {
	src := "2dt 4 1 10.0 1 1 1e-9 1e-3 2e-5\n" +
		"span 1\nconductor 1 10.0 0.0 0.01 0.0\nend\n"
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, netlist.Mode2DT, nl.Header.Mode)
	require.True(t, nl.Header.LeftZ)
	require.True(t, nl.Header.RightZ)
	require.InDelta(t, 2e-5, nl.Header.DTSwitch, 1e-12)
}

func TestExpandPolesOddEven(t *testing.T) {
	db := netlist.DeviceBlock{PoleSpec: "odd"}
	require.Equal(t, []int{1, 3, 5}, db.ExpandPoles(5))
	db.PoleSpec = "even"
	require.Equal(t, []int{2, 4}, db.ExpandPoles(5))
}

func TestMeterMonitorInt(t *testing.T) {
	src := `
time 1 1e-9 1e-6
meter 2
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, "meter", nl.Devices[0].Kind)
	require.Equal(t, 2, nl.Devices[0].MonitorInt)
}

func TestNegativeLeadingParamSetsMonitor(t *testing.T) {
	src := `
time 1 1e-9 1e-6
ground -60.0 100.0 0.0 10.0 1.0
pairs 1 0
poles all
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.True(t, nl.Devices[0].Monitor)
	require.InDelta(t, 60.0, nl.Devices[0].Params[0], 1e-9)
}

func TestBadRadiusRejected(t *testing.T) {
	src := "time 1 1e-9 1e-6\nspan 1\nconductor 1 10.0 0.0 -1.0 0.0\nend\n"
	_, err := netlist.Parse(strings.NewReader(src))
	require.Error(t, err)
}

func TestMixedConductorAndCableRejected(t *testing.T) {
	src := "time 1 1e-9 1e-6\n" +
		"span 1\nconductor 1 10.0 0.0 0.01 0.0\ncable 2 300.0 3e8 1.0\nend\n"
	_, err := netlist.Parse(strings.NewReader(src))
	require.Error(t, err)
}

func TestUnrecognizedDeviceKind(t *testing.T) {
	_, err := netlist.Parse(strings.NewReader("time 1 1e-9 1e-6\nwidget 1 2 3\npairs 1 0\npoles all\n"))
	require.Error(t, err)
}

func TestMissingPairsSection(t *testing.T) {
	_, err := netlist.Parse(strings.NewReader("time 1 1e-9 1e-6\nresistor 50.0\npoles all\n"))
	require.Error(t, err)
}

func TestEmptyInput(t *testing.T) {
	_, err := netlist.Parse(strings.NewReader(""))
	require.Error(t, err)
}

func TestParseLineRecord(t *testing.T) {
	src := `
3 1 30.0 0 0 5e-9 2e-6
span A
  cable 1 300.0 3e8 1.0
end
span B
  cable 1 150.0 2e8 1.0
end
line 1 2 A 30.0 1 0
line 2 3 B 30.0 0 1
`
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, nl.Spans, 2)
	require.Len(t, nl.Lines, 2)
	require.Equal(t, netlist.LineSpec{From: 1, To: 2, SpanID: "A", Length: 30.0, TermLeft: 1, TermRight: 0}, nl.Lines[0])
	require.Equal(t, netlist.LineSpec{From: 2, To: 3, SpanID: "B", Length: 30.0, TermLeft: 0, TermRight: 1}, nl.Lines[1])
}
