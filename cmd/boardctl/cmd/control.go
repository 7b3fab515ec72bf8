package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/debug"
)

var (
	resetRun  bool
	resetHalt bool
	resetInit bool
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Halt, resume or reset the target",
	Long: `Perform one run-control operation on the target through the board's
debugger. Each operation is sent once and never retried.`,
}

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Halt the target core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, debug.Flags{Halt: true})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the target core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, debug.Flags{Resume: true})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the target",
	Long: `Reset the target. --run lets it run, --halt stops it at the reset vector and
--init also runs the debugger's init sequence. Without a flag the debugger's
default reset is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runControl(cmd, debug.Flags{Reset: true, Run: resetRun, HaltAfter: resetHalt, Init: resetInit})
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetRun, "run", false, "reset and run")
	resetCmd.Flags().BoolVar(&resetHalt, "halt", false, "reset and halt")
	resetCmd.Flags().BoolVar(&resetInit, "init", false, "reset and init")
	resetCmd.MarkFlagsMutuallyExclusive("run", "halt", "init")

	controlCmd.AddCommand(haltCmd, resumeCmd, resetCmd)
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, flags debug.Flags) error {
	c, err := debug.Select(flags)
	if err != nil {
		return err
	}
	dev, err := selectDevice(cmd.Context())
	if err != nil {
		return err
	}
	if err := debug.Execute(cmd.Context(), capabilities(cfg), dev, c); err != nil {
		return err
	}
	status().Info("Control Complete", "cmd", c.String(), "device", dev.ShortID())
	return nil
}
