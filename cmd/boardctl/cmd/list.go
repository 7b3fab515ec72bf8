package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

var listKnown bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached boards",
	Long: `Enumerate USB devices and print one line per recognised board. Selection
flags narrow the list; --all includes devices boardctl does not recognise.
--known prints the table of supported boards instead.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listKnown, "known", false, "list supported boards instead of attached ones")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if listKnown {
		printKnown(cmd.OutOrStdout())
		return nil
	}

	devices, err := searchDevices(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s %-9s %-24s %-32s %-24s\n", "ID", "VID:PID", "Vendor", "Product", "Serial Number")
	for _, d := range devices {
		fmt.Fprintf(out, "%-8s %04x:%04x %-24s %-32s %-24s\n",
			d.ShortID(), d.USB.VendorID, d.USB.ProductID, d.USB.Vendor, d.USB.Product, d.USB.SerialNumber)
	}
	return nil
}

func printKnown(w io.Writer) {
	fmt.Fprintf(w, "%-9s %-18s %-11s %-10s %-5s %s\n", "VID:PID", "Type", "Loader", "Debugger", "ITM", "Description")
	for _, p := range device.Profiles() {
		debugger := string(p.Debugger)
		if debugger == "" {
			debugger = "-"
		}
		itm := "no"
		if p.TraceITM {
			itm = "yes"
		}
		fmt.Fprintf(w, "%04x:%04x %-18s %-11s %-10s %-5s %s\n",
			p.VendorID, p.ProductID, p.Type, p.Loader, debugger, itm, p.Label())
	}
}
