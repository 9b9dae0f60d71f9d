package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

var (
	watchChannel  int
	watchInterval time.Duration
	watchCount    int
)

var watchCmd = &cobra.Command{
	Use:   "watch <locator>",
	Short: "Capture repeatedly and print running statistics",
	Long: `Capture one scope channel at a fixed interval and print a line of
statistics per capture. A failed capture is reported and the loop goes on
with the previous capture kept. Combine with --metrics-addr to export the
exchange and capture counters while watching.

Examples:
  bench watch SIM::DS1054Z::INSTR --channel 1 --interval 500ms --count 10
  bench watch USB0::0x1AB1::0x04CE::DS1ZA1::INSTR --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVar(&watchChannel, "channel", 1, "channel index (1-based)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "time between captures")
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "number of captures (0 runs until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
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

	vert, err := driver.AsVertical(drv)
	if err != nil {
		return err
	}
	ch, err := vert.Channel(watchChannel)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	failures := 0
	for n := 1; watchCount == 0 || n <= watchCount; n++ {
		w, err := ch.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			fmt.Printf("%4d  %s  capture failed: %v\n", n, time.Now().Format("15:04:05"), err)
			// A transport failure closes the session; nothing left to watch.
			var connErr *transport.ConnectionError
			if errors.As(err, &connErr) {
				return err
			}
		} else {
			mean, _ := w.Mean()
			pk, _ := w.PkPk()
			clipped := ""
			if w.Clipped {
				clipped = "  CLIPPED"
			}
			fmt.Printf("%4d  %s  %s  n=%d  mean=%.4g V  pkpk=%.4g V%s\n",
				n, time.Now().Format("15:04:05"), ch.Name(), w.Len(), mean, pk, clipped)
		}

		if watchCount != 0 && n == watchCount {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d captures failed", failures, watchCount)
	}
	return nil
}
