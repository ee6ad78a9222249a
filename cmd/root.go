package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/inference-sim/qsim/sim"
	"github.com/inference-sim/qsim/sim/config"
	"github.com/inference-sim/qsim/sim/metrics"
	"github.com/inference-sim/qsim/sim/trace"
)

// runOptions collects the flags of `qsim run`.
type runOptions struct {
	networkPath   string  // YAML network description
	seed          int64   // Seed for every random stream
	maxTime       float64 // Simulated-time horizon (0 = none)
	maxCustomers  int     // Stop after this many individuals (0 = none)
	countMethod   string  // What maxCustomers counts
	untilDeadlock bool    // Run until deadlock is detected
	detect        bool    // Detect deadlock even when not running until it
	wallClock     time.Duration
	tracker       string  // State tracker name
	warmup        float64 // Ignore visits that began before this time in the summary
	metricsFile   string  // Prometheus textfile output
	recordsFile   string  // CSV record export
}

var (
	logLevel string // Log verbosity level
	runOpts  = runOptions{countMethod: string(sim.CountFinish)}
)

// countMethodValue rejects unknown --count-method values at parse time.
type countMethodValue string

var _ pflag.Value = (*countMethodValue)(nil)

func (v *countMethodValue) String() string { return string(*v) }
func (v *countMethodValue) Type() string   { return "method" }

func (v *countMethodValue) Set(s string) error {
	switch sim.CountMethod(s) {
	case sim.CountFinish, sim.CountArrive, sim.CountAccept:
		*v = countMethodValue(s)
		return nil
	}
	return fmt.Errorf("must be one of finish, arrive, accept")
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qsim",
	Short: "Discrete-event simulator for multi-class queueing networks",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd simulates a network file and prints a summary
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a queueing network",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runNetwork(runOpts, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd checks a network file without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a network file for errors",
	Run: func(cmd *cobra.Command, args []string) {
		if err := validateNetwork(runOpts.networkPath, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func loadNetwork(path string) (*sim.Network, error) {
	if path == "" {
		return nil, fmt.Errorf("--network is required")
	}
	nf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return nf.Build()
}

func validateNetwork(path string, out io.Writer) error {
	net, err := loadNetwork(path)
	if err != nil {
		return err
	}
	if _, err := sim.NewSimulation(net); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d nodes, %d classes, OK\n", path, net.NumNodes(), net.NumClasses())
	return nil
}

func (o runOptions) stopCondition() (sim.StopCondition, error) {
	stop := sim.StopCondition{
		MaxTime:       o.maxTime,
		MaxCustomers:  o.maxCustomers,
		CountMethod:   sim.CountMethod(o.countMethod),
		MaxWallClock:  o.wallClock,
		UntilDeadlock: o.untilDeadlock,
	}
	if stop.MaxTime == 0 && stop.MaxCustomers == 0 && !stop.UntilDeadlock && stop.MaxWallClock == 0 {
		return stop, fmt.Errorf("no stopping condition: set --max-time, --max-customers, --until-deadlock or --wall-clock")
	}
	return stop, nil
}

func runNetwork(o runOptions, out io.Writer) error {
	net, err := loadNetwork(o.networkPath)
	if err != nil {
		return err
	}
	stop, err := o.stopCondition()
	if err != nil {
		return err
	}
	tracker, err := sim.NewStateTracker(o.tracker)
	if err != nil {
		return fmt.Errorf("%w (valid: %s)", err, strings.Join(sim.ValidTrackerNames(), ", "))
	}
	opts := []sim.Option{sim.WithSeed(o.seed), sim.WithTracker(tracker)}
	if o.detect || o.untilDeadlock {
		opts = append(opts, sim.WithDeadlockDetector(sim.NewStateDigraph()))
	}
	s, err := sim.NewSimulation(net, opts...)
	if err != nil {
		return err
	}

	logrus.Infof("Starting simulation of %s (seed %d)", o.networkPath, o.seed)
	startTime := time.Now()
	if err := s.Run(stop); err != nil {
		return err
	}
	logrus.Infof("Simulated %.4f time units in %s", s.Clock(), time.Since(startTime))

	summary := trace.Summarize(s.Records(), net.NumNodes(), net.NumClasses(), o.warmup)
	printSummary(out, s, summary)
	if o.tracker != "" && o.tracker != "none" {
		printStates(out, s, o.warmup)
	}

	if o.metricsFile != "" {
		rec := metrics.NewRecorder()
		rec.Observe(s, summary)
		if err := rec.WriteTextfile(o.metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	if o.recordsFile != "" {
		if err := writeRecordsFile(o.recordsFile, s.Records()); err != nil {
			return err
		}
	}
	return nil
}

// writeRecordsFile writes records as CSV to path. A failed close is reported
// like a failed write.
func writeRecordsFile(path string, records []sim.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating records file: %w", err)
	}
	if err := trace.WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("writing records file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing records file: %w", err)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&runOpts.networkPath, "network", "", "Path to the YAML network description")

	runCmd.Flags().Int64Var(&runOpts.seed, "seed", 42, "Seed for every random stream")
	runCmd.Flags().Float64Var(&runOpts.maxTime, "max-time", 0, "Simulated-time horizon")
	runCmd.Flags().IntVar(&runOpts.maxCustomers, "max-customers", 0, "Stop once this many individuals were counted")
	runCmd.Flags().Var((*countMethodValue)(&runOpts.countMethod), "count-method", "What --max-customers counts (finish, arrive, accept)")
	runCmd.Flags().BoolVar(&runOpts.untilDeadlock, "until-deadlock", false, "Run until the network deadlocks")
	runCmd.Flags().BoolVar(&runOpts.detect, "detect-deadlock", false, "Stop early if the network deadlocks")
	runCmd.Flags().DurationVar(&runOpts.wallClock, "wall-clock", 0, "Abort after this much real time")
	runCmd.Flags().StringVar(&runOpts.tracker, "tracker", "none", "State tracker ("+strings.Join(sim.ValidTrackerNames(), ", ")+")")
	runCmd.Flags().Float64Var(&runOpts.warmup, "warmup", 0, "Ignore visits that began before this time in the summary")
	runCmd.Flags().StringVar(&runOpts.metricsFile, "metrics-file", "", "Write Prometheus gauges to this textfile")
	runCmd.Flags().StringVar(&runOpts.recordsFile, "records-file", "", "Write every record to this CSV file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
