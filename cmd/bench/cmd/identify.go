package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <locator>",
	Short: "Identify one instrument and show its driver",
	Long: `Open the instrument at locator, query its identity and report the driver
that handles it together with the capabilities that driver offers.

Examples:
  bench identify SIM::DS1054Z::INSTR
  bench identify TCPIP0::192.168.1.50::INSTR
  bench identify --generic ASRL1::INSTR`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	id, drv, err := s.identify(ctx, args[0])
	if err != nil {
		var unidentified *driver.UnidentifiedDeviceError
		if errors.As(err, &unidentified) {
			fmt.Printf("Identity:     %s\n", id)
			fmt.Println("Driver:       none (use --generic for raw SCPI access)")
		}
		return err
	}
	defer drv.Close()

	printIdentity(s, drv)
	return nil
}

func printIdentity(s *session, drv driver.Driver) {
	id := drv.Identity()
	fmt.Printf("Manufacturer: %s\n", id.Manufacturer)
	fmt.Printf("Model:        %s\n", id.Model)
	fmt.Printf("Serial:       %s\n", id.SerialNumber)
	fmt.Printf("Firmware:     %s\n", id.FirmwareVersion)
	if v, ok := idn.LookupVendor(id.Manufacturer); ok {
		fmt.Printf("Vendor:       %s\n", v.Name)
	}
	fmt.Printf("Driver:       %s\n", s.driverName(id))

	cats := make([]string, 0, len(drv.Categories()))
	for _, c := range drv.Categories() {
		cats = append(cats, string(c))
	}
	fmt.Printf("Categories:   %s\n", orNone(cats))
	fmt.Printf("Capabilities: %s\n", orNone(driver.Capabilities(drv)))
}

func orNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
