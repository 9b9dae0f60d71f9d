package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var measureCmd = &cobra.Command{
	Use:   "measure <locator> [function]",
	Short: "Take a multimeter reading",
	Long: `Trigger one reading of a multimeter function. Without a function the
functions the meter supports are listed.

Examples:
  bench measure SIM::34461A::INSTR voltage:dc
  bench measure SIM::34461A::INSTR`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMeasure,
}

func init() {
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
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

	m, err := driver.AsMeter(drv)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		fmt.Println(strings.Join(m.Functions(), "\n"))
		return nil
	}

	v, err := m.Measure(ctx, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %g\n", args[1], v)
	return nil
}
