package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers"
)

var commandsCategory string

var commandsCmd = &cobra.Command{
	Use:   "commands [family]",
	Short: "Print a driver family's SCPI command table",
	Long: `Print the command paths, templates and accepted values of a driver family.
Without an argument the available families are listed.

Examples:
  bench commands
  bench commands ds1000z
  bench commands infiniivision --category trigger`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommands,
}

func init() {
	rootCmd.AddCommand(commandsCmd)

	commandsCmd.Flags().StringVar(&commandsCategory, "category", "", "only show paths under this category")
}

func runCommands(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range drivers.Families() {
			fmt.Println(name)
		}
		return nil
	}

	tree, ok := drivers.CommandTrees()[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown family %q (have %s)", args[0], strings.Join(drivers.Families(), ", "))
	}

	shown := 0
	for _, path := range tree.Paths() {
		if commandsCategory != "" && !strings.HasPrefix(path, commandsCategory+".") {
			continue
		}
		tmpl, err := tree.Template(path)
		if err != nil {
			return err
		}
		fmt.Printf("%-30s %s\n", path, tmpl)
		if values := tree.Values(path); len(values) > 0 {
			fmt.Printf("%-30s   values: %s\n", "", strings.Join(values, ", "))
		}
		shown++
	}
	if shown == 0 {
		return fmt.Errorf("no commands under category %q (have %s)", commandsCategory, strings.Join(tree.Categories(), ", "))
	}
	return nil
}
