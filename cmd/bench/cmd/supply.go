package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var (
	supplyOutput  int
	supplyVoltage float64
	supplyCurrent float64
	supplyOn      bool
	supplyOff     bool
)

// readback is implemented by supplies that can measure their outputs.
type readback interface {
	MeasureVoltage(ctx context.Context, output int) (float64, error)
	MeasureCurrent(ctx context.Context, output int) (float64, error)
}

var supplyCmd = &cobra.Command{
	Use:   "supply <locator>",
	Short: "Program a power supply output",
	Long: `Set the voltage and current limit of one supply output and switch it on
or off. Requests beyond the output's rating are clamped; the applied values
are printed.

Examples:
  bench supply SIM::DP832::INSTR --output 1 --voltage 3.3 --current 0.5 --on
  bench supply SIM::DP832::INSTR --output 3 --off`,
	Args: cobra.ExactArgs(1),
	RunE: runSupply,
}

func init() {
	rootCmd.AddCommand(supplyCmd)

	supplyCmd.Flags().IntVar(&supplyOutput, "output", 1, "output index (1-based)")
	supplyCmd.Flags().Float64Var(&supplyVoltage, "voltage", -1, "voltage setpoint in volts")
	supplyCmd.Flags().Float64Var(&supplyCurrent, "current", -1, "current limit in amps")
	supplyCmd.Flags().BoolVar(&supplyOn, "on", false, "enable the output")
	supplyCmd.Flags().BoolVar(&supplyOff, "off", false, "disable the output")
}

func runSupply(cmd *cobra.Command, args []string) error {
	if supplyOn && supplyOff {
		return fmt.Errorf("--on and --off are exclusive")
	}

	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	_, drv, err := s.identify(ctx, args[0])
	if err != nil {
		return err
	}
	defer drv.Close()

	src, err := driver.AsSource(drv)
	if err != nil {
		return err
	}

	if supplyVoltage >= 0 {
		applied, err := src.SetVoltage(ctx, supplyOutput, supplyVoltage)
		if err != nil {
			return err
		}
		fmt.Printf("CH%d voltage: %g V\n", supplyOutput, applied)
	}
	if supplyCurrent >= 0 {
		applied, err := src.SetCurrent(ctx, supplyOutput, supplyCurrent)
		if err != nil {
			return err
		}
		fmt.Printf("CH%d current: %g A\n", supplyOutput, applied)
	}
	if supplyOn || supplyOff {
		if err := src.SetOutput(ctx, supplyOutput, supplyOn); err != nil {
			return err
		}
		state := "OFF"
		if supplyOn {
			state = "ON"
		}
		fmt.Printf("CH%d output:  %s\n", supplyOutput, state)
	}

	if rb, ok := drv.(readback); ok {
		v, err := rb.MeasureVoltage(ctx, supplyOutput)
		if err != nil {
			return err
		}
		a, err := rb.MeasureCurrent(ctx, supplyOutput)
		if err != nil {
			return err
		}
		fmt.Printf("CH%d reading: %g V, %g A\n", supplyOutput, v, a)
	}
	return nil
}
