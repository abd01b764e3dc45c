package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/engine"
	"github.com/epri-oss/openetran-go/pkg/netlist"
)

func parse(t *testing.T, src string) *netlist.Netlist {
	t.Helper()
	nl, err := netlist.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return nl
}

func TestBuildTimeModeSinglePole(t *testing.T) {
	src := `
time 1 1e-9 1e-6
resistor 50.0
pairs 1 0
poles all
`
	nl := parse(t, src)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)
	require.Equal(t, 1, ctx.N)
	require.Len(t, ctx.Poles, 1)
	require.Empty(t, ctx.Lines)
}

func TestBuildUniformModeWithSpanAndTermination(t *testing.T) {
	src := `
2 1 30.0 1 1 5e-9 50e-6
span 1
  cable 1 300.0 3e8 1.0
end
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles 1
`
	nl := parse(t, src)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)
	require.Equal(t, 2, ctx.N)
	require.Len(t, ctx.Poles, 2)
	require.Len(t, ctx.Lines, 1)
	require.Len(t, ctx.Surges(), 1)
}

func TestBuildNetworkModeWithDistinctSpansPerLine(t *testing.T) {
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
surge 10000 1.2e-6 50e-6 0
pairs 1 0
poles 1
resistor 300.0
pairs 1 0
poles 3
meter 0
pairs 1 0
poles 3
`
	nl := parse(t, src)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)
	require.Equal(t, 3, ctx.N)
	require.Len(t, ctx.Lines, 2)
	require.Equal(t, 1, ctx.Lines[0].LeftPole)
	require.Equal(t, 2, ctx.Lines[0].RightPole)
	require.Equal(t, 2, ctx.Lines[1].LeftPole)
	require.Equal(t, 3, ctx.Lines[1].RightPole)

	w := &recordingWriter{}
	require.NoError(t, ctx.Run(w))
	require.NotEmpty(t, w.rows)
	for _, row := range w.rows {
		require.False(t, row[0] != row[0]) // not NaN
	}
}

func TestBuildNetworkModeUndefinedSpanRejected(t *testing.T) {
	src := `
2 1 30.0 0 0 5e-9 50e-6
span A
  cable 1 300.0 3e8 1.0
end
line 1 2 missing 30.0 0 0
`
	nl := parse(t, src)
	_, err := engine.Build(nl, nil)
	require.Error(t, err)
}

func TestBuildMeterWiresToArresterAmps(t *testing.T) {
	src := `
time 1 1e-9 1e-6
arrester 30000 40000 1.0 0.0
pairs 1 0
poles all
meter 1
pairs 1 0
poles all
`
	nl := parse(t, src)
	ctx, err := engine.Build(nl, nil)
	require.NoError(t, err)
	_, amps := ctx.PlotMeters()
	require.Len(t, amps, 1)
}

func TestBuildBadPoleRange(t *testing.T) {
	src := `
time 1 1e-9 1e-6
resistor 50.0
pairs 1 0
poles 1 2
`
	nl := parse(t, src)
	_, err := engine.Build(nl, nil)
	require.Error(t, err)
}
