package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <locator> <command>",
	Short: "Send a raw SCPI command",
	Long: `Send one SCPI message to the instrument without driver dispatch. Messages
containing '?' are queries and print the response; anything else is written
and the error queue is checked.

Examples:
  bench query SIM::DS1054Z::INSTR '*IDN?'
  bench query TCPIP0::192.168.1.50::INSTR ':CHAN1:SCAL 0.5'`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := s.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	msg := args[1]
	if strings.Contains(msg, "?") {
		resp, err := h.Query(ctx, msg)
		if err != nil {
			return err
		}
		fmt.Println(resp)
		return nil
	}

	if err := h.Write(ctx, msg); err != nil {
		return err
	}
	status, err := h.Query(ctx, ":SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.TrimSpace(status), "0,") && !strings.HasPrefix(strings.TrimSpace(status), "+0,") {
		return fmt.Errorf("instrument reported %s", status)
	}
	if verbose {
		fmt.Println(status)
	}
	return nil
}
