package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the configured firmware build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := newBuilder(cfg).Build(cmd.Context())
		if err != nil {
			return err
		}
		status().Info("Build Complete", "artifact", artifact)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
