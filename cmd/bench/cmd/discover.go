package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var (
	discoverAll     bool
	discoverRefresh bool
)

var categories = []driver.Category{
	driver.CategoryScope,
	driver.CategorySupply,
	driver.CategoryDMM,
	driver.CategoryGenerator,
}

var discoverCmd = &cobra.Command{
	Use:   "discover <category>",
	Short: "Find instruments of a category",
	Long: `Walk the reachable locators in order, identify each instrument and report
the first one whose driver offers the category (scope, supply, dmm,
generator). Instruments that cannot be opened or identified are skipped.

Examples:
  # First scope on the bench
  bench discover scope

  # Every supply, rescanning the buses first
  bench discover supply --all --refresh

  # Against simulated instruments
  bench discover scope --all --no-scan --sim DS1054Z --sim DSOX2024A`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().BoolVarP(&discoverAll, "all", "a", false, "report every matching instrument")
	discoverCmd.Flags().BoolVarP(&discoverRefresh, "refresh", "r", false, "force a rescan")
}

func parseCategory(s string) (driver.Category, error) {
	for _, c := range categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown category %q (want %s)", s, strings.Join(names, ", "))
}

func runDiscover(cmd *cobra.Command, args []string) error {
	category, err := parseCategory(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.discoverer(discoverRefresh)
	var found []driver.Driver
	if discoverAll {
		found, err = d.DiscoverAll(ctx, category)
	} else {
		var drv driver.Driver
		drv, err = d.Discover(ctx, category)
		if drv != nil {
			found = append(found, drv)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Found %d %s instrument(s)\n", len(found), category)
	for i, drv := range found {
		id := drv.Identity()
		fmt.Printf("\n[%d] %s %s\n", i, id.Manufacturer, id.Model)
		fmt.Printf("    Serial:       %s\n", id.SerialNumber)
		fmt.Printf("    Driver:       %s\n", s.driverName(id))
		fmt.Printf("    Capabilities: %s\n", orNone(driver.Capabilities(drv)))
		drv.Close()
	}
	return nil
}
