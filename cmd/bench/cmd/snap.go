package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/keysight"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/rigol"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/ranges"
)

var (
	snapTable  string
	snapFamily string
	snapList   bool
)

// rangeTables holds the discrete settings of each scope family.
var rangeTables = map[string]map[string]ranges.Table{
	"ds1000z": {
		"timebase": rigol.DS1000ZTimebase,
		"vdiv":     rigol.DS1000ZVoltsPerDiv,
	},
	"infiniivision": {
		"timebase": keysight.InfiniiVisionTimebase,
		"vdiv":     keysight.InfiniiVisionVoltsPerDiv,
	},
}

var snapCmd = &cobra.Command{
	Use:   "snap [value]",
	Short: "Show the setting a scope applies for a requested value",
	Long: `Snap a requested timebase or vertical scale to a scope family's table,
exactly as the driver does before sending it. A value between two entries
rounds up to the next one; requests outside the table clamp to its ends.

Examples:
  bench snap 3e-4 --table timebase                # 0.0005
  bench snap 20 --table vdiv --family infiniivision
  bench snap --list --table vdiv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnap,
}

func init() {
	rootCmd.AddCommand(snapCmd)

	snapCmd.Flags().StringVarP(&snapTable, "table", "t", "timebase", "table to snap against (timebase, vdiv)")
	snapCmd.Flags().StringVarP(&snapFamily, "family", "f", "ds1000z", "scope family (ds1000z, infiniivision)")
	snapCmd.Flags().BoolVarP(&snapList, "list", "l", false, "print every value in the table")
}

func lookupTable(family, table string) (ranges.Table, error) {
	tables, ok := rangeTables[family]
	if !ok {
		families := make([]string, 0, len(rangeTables))
		for name := range rangeTables {
			families = append(families, name)
		}
		sort.Strings(families)
		return ranges.Table{}, fmt.Errorf("unknown family %q (have %v)", family, families)
	}
	t, ok := tables[table]
	if !ok {
		return ranges.Table{}, fmt.Errorf("unknown table %q (want timebase or vdiv)", table)
	}
	return t, nil
}

func runSnap(cmd *cobra.Command, args []string) error {
	t, err := lookupTable(snapFamily, snapTable)
	if err != nil {
		return err
	}

	if snapList {
		for _, v := range t.Values() {
			fmt.Printf("%g\n", v)
		}
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("snap needs a value or --list")
	}
	requested, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[0], err)
	}

	applied := t.Snap(requested)
	if verbose {
		fmt.Printf("Requested: %g\n", requested)
		fmt.Printf("Range:     %g .. %g (%d values)\n", t.Min(), t.Max(), t.Len())
	}
	fmt.Printf("%g\n", applied)
	return nil
}
