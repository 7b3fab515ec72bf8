package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/internal/config"
	"github.com/OpenTraceLab/boardctl/internal/logging"
	"github.com/OpenTraceLab/boardctl/pkg/console"
	"github.com/OpenTraceLab/boardctl/pkg/dap"
	"github.com/OpenTraceLab/boardctl/pkg/device"
	"github.com/OpenTraceLab/boardctl/pkg/tools"
)

var (
	// Global flags
	verbose bool
	cfgFile string

	// Device selection flags
	selDevice string
	selSerial string
	selVID    string
	selPID    string
	selType   string
	selMatch  string
	selAll    bool

	cfg *config.Config
)

// Host access, replaced in tests.
var (
	newEnumerator = func() device.Enumerator { return device.USBEnumerator{} }
	newLocator    = func() device.Locator { return device.NewHostLocator() }
	runner        tools.Runner = &tools.ExecRunner{}
	openConsole                = console.Open
	openProbe                  = func(dev *device.Device) (dap.Transport, error) {
		return dap.OpenUSB(dev.USB.VendorID, dev.USB.ProductID, dev.USB.SerialNumber)
	}
)

var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Embedded board controller",
	Long: `boardctl finds development boards and debug probes attached over USB and
drives them: flashing firmware, halting and resetting targets, streaming the
serial console and starting ITM trace.

Examples:
  boardctl list                          # List recognised boards
  boardctl info --device 1a2b            # Show everything known about one board
  boardctl load --run                    # Build, flash and open the console
  boardctl load --binary fw.bin --itm    # Flash an image and start ITM trace
  boardctl control reset --halt          # Reset and stop at the reset vector
  boardctl console --packet              # View framed diagnostic messages`,
	Version:           "0.9.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. Interrupts cancel the running command. A
// failing external tool's exit code becomes the process exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var ee *tools.ExitError
	if errors.As(err, &ee) && ee.Code > 0 {
		os.Exit(ee.Code)
	}
	os.Exit(1)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&cfgFile, "config", "", "config file (default ./boardctl.yaml)")

	pf.StringVarP(&selDevice, "device", "d", "", "device ID prefix")
	pf.StringVarP(&selSerial, "serial", "s", "", "serial number substring")
	pf.StringVar(&selVID, "vid", "", "USB vendor ID (hex)")
	pf.StringVar(&selPID, "pid", "", "USB product ID (hex)")
	pf.StringVarP(&selType, "type", "t", "", "device type, e.g. stlink-v2-1")
	pf.StringVar(&selMatch, "match", "", `filter expression, e.g. "vid=0483 serial~066F"`)
	pf.BoolVar(&selAll, "all", false, "include unrecognised USB devices")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	logging.Setup(cmd.ErrOrStderr(), format, level)
	return nil
}

func status() *slog.Logger {
	return logging.For(logging.ComponentDispatch)
}
