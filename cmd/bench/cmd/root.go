package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	timeout     time.Duration
	metricsAddr string
	simModels   []string
	noScan      bool
	useGeneric  bool
)

var rootCmd = &cobra.Command{
	Use:   "bench",
	Short: "Bench instrument discovery and control",
	Long: `A tool for finding bench instruments (oscilloscopes, power supplies,
multimeters) over USBTMC, LAN and serial, identifying them and driving them
through a common capability interface.

Examples:
  bench list --sim DS1054Z --sim DP832            # List reachable instruments
  bench identify USB0::0x1AB1::0x04CE::DS1ZA1::INSTR
  bench discover scope --all                      # Every scope on the bench
  bench capture SIM::DS1054Z::INSTR --channel 1   # Capture and summarize CH1
  bench snap 3e-4 --table timebase                # Show the applied timebase`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	flags.DurationVar(&timeout, "timeout", 0, "per-exchange timeout (overrides config)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringSliceVar(&simModels, "sim", nil, "add a simulated instrument (model name, repeatable)")
	flags.BoolVar(&noScan, "no-scan", false, "skip USB and serial bus scans")
	flags.BoolVar(&useGeneric, "generic", false, "accept unknown instruments with the raw SCPI driver")
}
