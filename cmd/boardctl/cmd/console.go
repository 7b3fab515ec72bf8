package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/boardctl/pkg/capability"
	"github.com/OpenTraceLab/boardctl/pkg/console"
)

var consolePacket bool

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Stream a board's serial console",
	Long: `Open the board's CDC serial port at 115200 8N1 and copy its output to the
terminal until interrupted. With --packet the stream is decoded as COBS framed
diagnostic records: boot messages are prefixed with "boot: " and stderr records
go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().BoolVar(&consolePacket, "packet", false, "decode framed diagnostic records")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	dev, err := selectDevice(cmd.Context())
	if err != nil {
		return err
	}
	path, ok := dev.Caps.Console()
	if !ok {
		return capability.MissingError("console")
	}

	s, err := openConsole(path, consoleOptions(cmd)...)
	if err != nil {
		return err
	}
	defer s.Close()

	status().Info("Opening Console", "path", path)
	return viewConsole(cmd.Context(), s, consolePacket)
}

func consoleOptions(cmd *cobra.Command) []console.Option {
	return []console.Option{
		console.WithOutput(cmd.OutOrStdout()),
		console.WithErrorOutput(cmd.ErrOrStderr()),
		console.WithMaxReadErrors(cfg.Console.MaxReadErrors),
	}
}

func viewConsole(ctx context.Context, s *console.Session, packet bool) error {
	var err error
	if packet {
		err = s.ViewFramed(ctx)
	} else {
		err = s.ViewRaw(ctx)
	}
	return interrupted(err)
}

// interrupted treats cancellation by the operator as a normal exit.
func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
