package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/epri-oss/openetran-go/pkg/config"
)

func TestLoadDefaultsMissingFileIsNotError(t *testing.T) {
	run, err := config.LoadDefaults(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.PlotNone, run.PlotFormat)
	require.Equal(t, "info", run.LogLevel)
}

func TestLoadDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plot_format: csv\nlog_level: debug\n"), 0o644))

	run, err := config.LoadDefaults(path)
	require.NoError(t, err)
	require.Equal(t, config.PlotCSV, run.PlotFormat)
	require.Equal(t, "debug", run.LogLevel)
}

func TestValidateRequiresNetlistFile(t *testing.T) {
	run := &config.Run{PlotFormat: config.PlotNone}
	require.Error(t, run.Validate())
}

func TestValidatePlotFormatRequiresFile(t *testing.T) {
	run := &config.Run{NetlistFile: "x.net", PlotFormat: config.PlotCSV}
	require.Error(t, run.Validate())

	run.PlotFile = "out.csv"
	require.NoError(t, run.Validate())
}

func TestValidateRejectsUnknownPlotFormat(t *testing.T) {
	run := &config.Run{NetlistFile: "x.net", PlotFormat: "bogus"}
	require.Error(t, run.Validate())
}

func TestValidateCriticalCurrentBounds(t *testing.T) {
	run := &config.Run{
		NetlistFile: "x.net",
		PlotFormat:  config.PlotNone,
		ICrit: &config.CriticalCurrent{
			First: 1000, Last: 500,
			Fronts: []float64{1.2e-6}, Tails: []float64{50e-6},
		},
	}
	require.Error(t, run.Validate())

	run.ICrit.First, run.ICrit.Last = 3e3, 500e3
	require.NoError(t, run.Validate())

	run.ICrit.Tails = nil
	require.Error(t, run.Validate())
}
