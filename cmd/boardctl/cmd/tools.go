package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/tools"
)

var gdbBinary string

var openocdCmd = &cobra.Command{
	Use:   "openocd",
	Short: "Run OpenOCD against the selected probe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := selectDevice(cmd.Context())
		if err != nil {
			return err
		}
		ocd := &tools.OpenOCD{Runner: runner, Path: cfg.OpenOCD.Path, Config: cfg.OpenOCD.Config}
		return interrupted(ocd.Serve(cmd.Context(), dev))
	},
}

var gdbCmd = &cobra.Command{
	Use:   "gdb",
	Short: "Build and start gdb on the firmware image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		image := gdbBinary
		if image == "" {
			var err error
			if image, err = newBuilder(cfg).Build(cmd.Context()); err != nil {
				return err
			}
		}
		g := &tools.GDB{Runner: runner, Path: cfg.GDB.Path}
		return interrupted(g.Run(cmd.Context(), image))
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Attach screen to the board's serial console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := selectDevice(cmd.Context())
		if err != nil {
			return err
		}
		s := &tools.Screen{Runner: runner, Path: cfg.Screen.Path}
		return interrupted(s.Run(cmd.Context(), dev))
	},
}

func init() {
	gdbCmd.Flags().StringVar(&gdbBinary, "binary", "", "image to debug instead of building")
	rootCmd.AddCommand(openocdCmd, gdbCmd, screenCmd)
}
