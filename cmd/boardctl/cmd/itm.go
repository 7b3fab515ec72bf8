package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/itm"
)

var itmTargetClock uint32

var itmCmd = &cobra.Command{
	Use:   "itm",
	Short: "Start ITM trace",
	Long: `Configure SWO at 2 MHz and stream ITM output from the target. The target
core clock comes from --itm-target-clock or itm.target_clock in the config.`,
	Args: cobra.NoArgs,
	RunE: runITM,
}

func init() {
	itmCmd.Flags().Uint32Var(&itmTargetClock, "itm-target-clock", 0, "target core clock in Hz")
	rootCmd.AddCommand(itmCmd)
}

func runITM(cmd *cobra.Command, args []string) error {
	dev, err := selectDevice(cmd.Context())
	if err != nil {
		return err
	}
	clk, err := itm.ResolveTargetClock(itmTargetClock, cfg)
	if err != nil {
		return err
	}
	return interrupted(itm.Start(cmd.Context(), capabilities(cfg), dev, clk))
}
