package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

var (
	captureChannel  int
	captureTimebase float64
	captureVdiv     float64
	captureCoupling string
	captureOutput   string
)

var captureCmd = &cobra.Command{
	Use:   "capture <locator>",
	Short: "Capture a waveform from a scope channel",
	Long: `Acquire the displayed record of one channel, decode it to volts and print
summary statistics. Timebase and vertical scale are rounded up to the next
value the scope supports before the capture; the applied values are shown.

Examples:
  bench capture SIM::DS1054Z::INSTR --channel 2
  bench capture USB0::0x1AB1::0x04CE::DS1ZA1::INSTR --timebase 1e-3 --vdiv 0.5
  bench capture SIM::DSOX2024A::INSTR --output ch1.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().IntVar(&captureChannel, "channel", 1, "channel index (1-based)")
	captureCmd.Flags().Float64Var(&captureTimebase, "timebase", 0, "seconds per division (0 keeps the current setting)")
	captureCmd.Flags().Float64Var(&captureVdiv, "vdiv", 0, "volts per division (0 keeps the current setting)")
	captureCmd.Flags().StringVar(&captureCoupling, "coupling", "", "input coupling (AC, DC, GND)")
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "write time,voltage samples to a CSV file")
}

func runCapture(cmd *cobra.Command, args []string) error {
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

	vert, err := driver.AsVertical(drv)
	if err != nil {
		return err
	}
	ch, err := vert.Channel(captureChannel)
	if err != nil {
		return err
	}

	if captureTimebase > 0 {
		horiz, err := driver.AsHorizontal(drv)
		if err != nil {
			return err
		}
		applied, err := horiz.SetTimebase(ctx, captureTimebase)
		if err != nil {
			return err
		}
		fmt.Printf("Timebase:  %g s/div\n", applied)
	}
	if captureVdiv > 0 {
		applied, err := ch.SetVoltsPerDiv(ctx, captureVdiv)
		if err != nil {
			return err
		}
		fmt.Printf("Scale:     %g V/div\n", applied)
	}
	if captureCoupling != "" {
		if err := ch.SetCoupling(ctx, captureCoupling); err != nil {
			return err
		}
	}

	w, err := ch.Capture(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Captured %d samples from %s (%s)\n", w.Len(), ch.Name(), drv.Identity().Model)
	printStats(w)
	if w.Clipped {
		fmt.Println("Warning:   signal clipped at the ADC limits; increase V/div")
	}

	if captureOutput != "" {
		if err := writeCSV(captureOutput, w); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", captureOutput)
	}
	return nil
}

func printStats(w *waveform.Waveform) {
	mean, _ := w.Mean()
	lo, _ := w.Min()
	hi, _ := w.Max()
	pk, _ := w.PkPk()
	fmt.Printf("Sample:    %g s\n", w.Preamble.XIncrement)
	fmt.Printf("Mean:      %.6g V\n", mean)
	fmt.Printf("Min:       %.6g V\n", lo)
	fmt.Printf("Max:       %.6g V\n", hi)
	fmt.Printf("Pk-Pk:     %.6g V\n", pk)
}

func writeCSV(path string, w *waveform.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := csv.NewWriter(f)
	out.Write([]string{"time", "voltage"})
	for i := range w.Voltage {
		out.Write([]string{
			strconv.FormatFloat(w.Time[i], 'g', -1, 64),
			strconv.FormatFloat(w.Voltage[i], 'g', -1, 64),
		})
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return err
	}
	return f.Close()
}
