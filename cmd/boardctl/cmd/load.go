package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/console"
	"github.com/OpenTraceLab/boardctl/pkg/itm"
)

var (
	loadRun         bool
	loadITM         bool
	loadNoConsole   bool
	loadPacket      bool
	loadTargetClock uint32
	loadBinary      string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Build and flash firmware",
	Long: `Build the firmware (or take --binary), flash it with the board's loader and
optionally follow up with the console (--run) or ITM trace (--itm).

The loader is resolved before anything is built or flashed, so a board without
one fails immediately.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.BoolVar(&loadRun, "run", false, "open the console after loading")
	f.BoolVar(&loadITM, "itm", false, "start ITM trace after loading")
	f.BoolVar(&loadNoConsole, "noconsole", false, "do not open the console")
	f.BoolVar(&loadPacket, "packet", false, "decode framed diagnostic records on the console")
	f.Uint32Var(&loadTargetClock, "itm-target-clock", 0, "target core clock in Hz for ITM trace")
	f.StringVar(&loadBinary, "binary", "", "image to load instead of building")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dev, err := selectDevice(ctx)
	if err != nil {
		return err
	}

	reg := capabilities(cfg)
	ldr, err := reg.ResolveLoader(dev)
	if err != nil {
		return err
	}
	status().Debug("loader", "type", dev.Caps.Loader)

	var clk uint32
	if loadITM {
		if clk, err = itm.ResolveTargetClock(loadTargetClock, cfg); err != nil {
			return err
		}
		if _, err := reg.ResolveTracer(dev); err != nil {
			return err
		}
	}

	image := loadBinary
	if image == "" {
		if image, err = newBuilder(cfg).Build(ctx); err != nil {
			return err
		}
	}
	status().Debug("target", "image", image)

	var sess *console.Session
	if loadRun && !loadNoConsole && !loadITM {
		if path, ok := dev.Caps.Console(); ok {
			if sess, err = openConsole(path, consoleOptions(cmd)...); err != nil {
				return err
			}
			defer sess.Close()
			if err := sess.Clear(); err != nil {
				return err
			}
		}
	}

	if err := ldr.Load(ctx, dev, image); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	status().Info("Load Complete", "device", dev.ShortID())

	switch {
	case loadITM:
		return interrupted(itm.Start(ctx, reg, dev, clk))
	case sess != nil:
		status().Info("Opening Console")
		return viewConsole(ctx, sess, loadPacket)
	}
	return nil
}
