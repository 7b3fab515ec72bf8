package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/device"
)

var infoJSON bool

// DeviceInfo is the JSON form of a device.
type DeviceInfo struct {
	ID            string `json:"id"`
	VendorID      string `json:"vendor_id"`
	ProductID     string `json:"product_id"`
	Vendor        string `json:"vendor"`
	Product       string `json:"product"`
	SerialNumber  string `json:"serial_number"`
	Type          string `json:"type"`
	Loader        string `json:"loader_type,omitempty"`
	Debugger      string `json:"debugger_type,omitempty"`
	Bootloader    string `json:"bossac_device,omitempty"`
	CDC           string `json:"cdc_device,omitempty"`
	MSD           string `json:"msd_device,omitempty"`
	OpenOCDSerial string `json:"openocd_serial,omitempty"`
	TraceITM      bool   `json:"trace_itm"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show details of matching boards",
	Long: `Print the identity, type, capability tags and host paths of every board
matching the selection flags.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	devices, err := searchDevices(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if infoJSON {
		infos := make([]DeviceInfo, 0, len(devices))
		for _, d := range devices {
			infos = append(infos, toDeviceInfo(d))
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	for i, d := range devices {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printInfo(out, d)
	}
	return nil
}

func printInfo(w io.Writer, d *device.Device) {
	line := func(label, value string) {
		fmt.Fprintf(w, "%-16s %s\n", label, value)
	}
	line("ID", d.ID)
	line("Vendor ID", fmt.Sprintf("%04x", d.USB.VendorID))
	line("Product ID", fmt.Sprintf("%04x", d.USB.ProductID))
	line("Vendor", d.USB.Vendor)
	line("Product", d.USB.Product)
	line("Serial Number", d.USB.SerialNumber)
	line("Type", d.TypeName())

	if v, ok := d.Caps.LoaderTag(); ok {
		line("Loader Type", string(v))
	}
	if v, ok := d.Caps.DebuggerTag(); ok {
		line("Debugger Type", string(v))
	}
	if v, ok := d.Caps.Bootloader(); ok {
		line("Bossac Device", v)
	}
	if v, ok := d.Caps.Console(); ok {
		line("CDC Device", v)
	}
	if v, ok := d.Caps.MassStorage(); ok {
		line("MSD Device", v)
	}
	if v, ok := d.Caps.TraceSerial(); ok {
		line("OpenOCD Serial", v)
	}
}

func toDeviceInfo(d *device.Device) DeviceInfo {
	return DeviceInfo{
		ID:            d.ID,
		VendorID:      fmt.Sprintf("%04x", d.USB.VendorID),
		ProductID:     fmt.Sprintf("%04x", d.USB.ProductID),
		Vendor:        d.USB.Vendor,
		Product:       d.USB.Product,
		SerialNumber:  d.USB.SerialNumber,
		Type:          d.TypeName(),
		Loader:        string(d.Caps.Loader),
		Debugger:      string(d.Caps.Debugger),
		Bootloader:    d.Caps.BootloaderPath,
		CDC:           d.Caps.CDCPath,
		MSD:           d.Caps.MSDPath,
		OpenOCDSerial: d.Caps.OpenOCDSerial,
		TraceITM:      d.Caps.CanTraceITM(),
	}
}
