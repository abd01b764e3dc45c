package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epri-oss/openetran-go/internal/oeerr"
	"github.com/epri-oss/openetran-go/pkg/config"
	"github.com/epri-oss/openetran-go/pkg/engine"
	"github.com/epri-oss/openetran-go/pkg/netlist"
	"github.com/epri-oss/openetran-go/pkg/plot"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "openetran",
	Short:         "Time-domain EMT transient solver for overhead/underground distribution feeders",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var plotFile string
var plotFormat string

var runCmd = &cobra.Command{
	Use:   "run NETLIST",
	Short: "Run a single transient simulation and write a plot file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		run := &config.Run{
			NetlistFile: args[0],
			PlotFormat:  config.PlotFormat(plotFormat),
			PlotFile:    plotFile,
			LogLevel:    logLevel,
		}
		if err := run.Validate(); err != nil {
			return err
		}
		return doRun(run, log)
	},
}

var icritFile string

var icritCmd = &cobra.Command{
	Use:   "icrit NETLIST FIRST LAST W1 [W2 ...]",
	Short: "Search for the critical stroke current over a range of poles",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		return doICrit(args, icritFile, log)
	},
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	f, err := os.OpenFile("openetran.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		log.SetOutput(f)
	}
	return log
}

func doRun(run *config.Run, log *logrus.Logger) error {
	f, err := os.Open(run.NetlistFile)
	if err != nil {
		return oeerr.Wrap(oeerr.ErrNoBuffer, err, "opening netlist %q", run.NetlistFile)
	}
	defer f.Close()

	nl, err := netlist.Parse(f)
	if err != nil {
		return err
	}
	ctx, err := engine.Build(nl, log)
	if err != nil {
		return err
	}

	var writer plot.Writer
	switch run.PlotFormat {
	case config.PlotNone:
	case config.PlotCSV:
		writer, err = plot.NewCSV(run.PlotFile, ctx.Meters())
	case config.PlotTab:
		writer, err = plot.NewTab(run.PlotFile, ctx.Meters())
	case config.PlotELT:
		volts, amps := ctx.PlotMeters()
		writer, err = plot.NewELT(run.PlotFile, ctx.FirstDT, ctx.FirstDT, ctx.FirstDT, volts, amps, []string{run.NetlistFile})
	}
	if err != nil {
		return err
	}
	if writer != nil {
		defer writer.Close()
	}

	return ctx.Run(writer)
}

func doICrit(args []string, outFile string, log *logrus.Logger) error {
	netlistFile := args[0]
	first, err := strconv.Atoi(args[1])
	if err != nil {
		return oeerr.New(oeerr.ErrBadPole, "bad FIRST pole %q", args[1])
	}
	last, err := strconv.Atoi(args[2])
	if err != nil {
		return oeerr.New(oeerr.ErrBadPole, "bad LAST pole %q", args[2])
	}
	var wires []bool
	for _, a := range args[3:] {
		w, err := strconv.Atoi(a)
		if err != nil {
			return oeerr.New(oeerr.ErrBadPair, "bad wire flag %q", a)
		}
		wires = append(wires, w != 0)
	}

	f, err := os.Open(netlistFile)
	if err != nil {
		return oeerr.Wrap(oeerr.ErrNoBuffer, err, "opening netlist %q", netlistFile)
	}
	defer f.Close()

	nl, err := netlist.Parse(f)
	if err != nil {
		return err
	}
	ctx, err := engine.Build(nl, log)
	if err != nil {
		return err
	}

	surges := ctx.Surges()
	if len(surges) != 1 {
		return oeerr.New(oeerr.ErrNoBuffer, "critical-current search requires exactly one surge block for front/tail shape, found %d", len(surges))
	}
	surge := surges[0]
	front, tail := surge.Front, surge.Tail

	out := os.Stdout
	if outFile != "" {
		out, err = os.Create(outFile)
		if err != nil {
			return oeerr.Wrap(oeerr.ErrNoBuffer, err, "creating %q", outFile)
		}
		defer out.Close()
	}

	for p := first; p <= last; p++ {
		if p < 1 || p > ctx.N {
			return oeerr.New(oeerr.ErrBadPole, "pole %d out of range [1,%d]", p, ctx.N)
		}
		for wire, struck := range wires {
			if !struck {
				continue
			}
			node := wire + 1
			surge.Parent = ctx.Poles[p-1]
			results, err := ctx.RunCritical(surge, []float64{front}, []float64{tail}, node, 0)
			if err != nil {
				return err
			}
			r := results[0]
			switch {
			case r.AlwaysFlashes:
				fmt.Fprintf(out, "pole %d wire %d: always flashes (Icrit <= %.0f A)\n", p, node, r.ICritical)
			case r.NeverFlashes:
				fmt.Fprintf(out, "pole %d wire %d: never flashes (Icrit >= %.0f A)\n", p, node, r.ICritical)
			default:
				fmt.Fprintf(out, "pole %d wire %d: Icrit = %.1f A\n", p, node, r.ICritical)
			}
		}
	}
	ctx.Reset()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")

	runCmd.Flags().StringVar(&plotFormat, "plot", "none", "plot format: none, csv, tab, elt")
	runCmd.Flags().StringVar(&plotFile, "out", "", "plot output file")

	icritCmd.Flags().StringVar(&icritFile, "out", "", "report output file (stdout if empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(icritCmd)
}

// Execute runs the root command and converts an *oeerr.Error into the
// taxonomy's numeric exit code, matching the original's exit(err_code).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var oe *oeerr.Error
		if errors.As(err, &oe) {
			return int(oe.Code)
		}
		return 1
	}
	return 0
}
