package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listRefresh  bool
	listIdentify bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reachable instrument locators",
	Long: `List the locators found by the enabled scanners (USB, serial, the
static list from the configuration and simulated instruments).

Results are cached for resources.cache_ttl; --refresh forces a rescan.

Examples:
  # List simulated instruments only
  bench list --no-scan --sim DS1054Z --sim DP832

  # Query each instrument for its identity as well
  bench list --identify`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVarP(&listRefresh, "refresh", "r", false, "force a rescan")
	listCmd.Flags().BoolVarP(&listIdentify, "identify", "i", false, "query *IDN? on every instrument")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	locators, err := s.cache.List(ctx, listRefresh)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}

	fmt.Printf("Found %d resource(s)\n", len(locators))
	for _, loc := range locators {
		fmt.Printf("  %-40s %s\n", loc.String(), loc.Label())
		if !listIdentify {
			continue
		}
		id, drv, err := s.identify(ctx, loc.String())
		if drv != nil {
			drv.Close()
		}
		switch {
		case id.Raw != "":
			name := s.driverName(id)
			if name == "" {
				name = "no driver"
			}
			fmt.Printf("    %s [%s]\n", id, name)
		case err != nil:
			fmt.Printf("    error: %v\n", err)
		}
	}
	return nil
}
