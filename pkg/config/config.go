// Package config resolves run configuration for a single invocation:
// the netlist file, plot output selection, and the optional outer
// critical-current sweep, merging a YAML defaults file with CLI flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/epri-oss/openetran-go/internal/oeerr"
)

// PlotFormat selects the per-step output writer (§6).
type PlotFormat string

const (
	PlotNone PlotFormat = "none"
	PlotCSV  PlotFormat = "csv"
	PlotTab  PlotFormat = "tab"
	PlotELT  PlotFormat = "elt"
)

// CriticalCurrent holds the outer Brent-search bounds and stroke-front
// pair list for `-icrit` (§6), empty when not requested.
type CriticalCurrent struct {
	First, Last float64
	Fronts      []float64 // paired tail values follow in Tails
	Tails       []float64
}

// Run is the fully resolved configuration for one simulation.
type Run struct {
	NetlistFile string     `yaml:"netlist"`
	PlotFormat  PlotFormat `yaml:"plot_format"`
	PlotFile    string     `yaml:"plot_file"`
	LogLevel    string     `yaml:"log_level"`

	ICrit *CriticalCurrent `yaml:"-"`
}

// fileDefaults is the subset of Run loadable from a YAML defaults file,
// consulted before CLI flags are applied on top.
type fileDefaults struct {
	PlotFormat PlotFormat `yaml:"plot_format"`
	LogLevel   string     `yaml:"log_level"`
}

// LoadDefaults reads a YAML defaults file if present; a missing file is
// not an error, since the CLI flags alone are a complete configuration.
func LoadDefaults(path string) (*Run, error) {
	run := &Run{PlotFormat: PlotNone, LogLevel: "info"}
	if path == "" {
		return run, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return run, nil
	}
	if err != nil {
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "reading config file %q", path)
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, oeerr.Wrap(oeerr.ErrNoBuffer, err, "parsing config file %q", path)
	}
	if fd.PlotFormat != "" {
		run.PlotFormat = fd.PlotFormat
	}
	if fd.LogLevel != "" {
		run.LogLevel = fd.LogLevel
	}
	return run, nil
}

// Validate checks the fully merged configuration before the engine runs.
func (r *Run) Validate() error {
	if r.NetlistFile == "" {
		return oeerr.New(oeerr.ErrNoBuffer, "no netlist file specified")
	}
	switch r.PlotFormat {
	case PlotNone, PlotCSV, PlotTab, PlotELT:
	default:
		return oeerr.New(oeerr.ErrNoBuffer, "unrecognized plot format %q", r.PlotFormat)
	}
	if r.PlotFormat != PlotNone && r.PlotFile == "" {
		return oeerr.New(oeerr.ErrNoBuffer, "plot format %q requires an output file", r.PlotFormat)
	}
	if r.ICrit != nil {
		if len(r.ICrit.Fronts) == 0 || len(r.ICrit.Fronts) != len(r.ICrit.Tails) {
			return oeerr.New(oeerr.ErrNoBuffer, "critical-current search requires matched front/tail pairs")
		}
		if r.ICrit.First <= 0 || r.ICrit.Last <= r.ICrit.First {
			return oeerr.New(oeerr.ErrNoBuffer, "critical-current bounds must satisfy 0 < first < last")
		}
	}
	return nil
}
