package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/wire"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor loop",
	Long: `Run the poll loop on the configured cadence until interrupted.
Configuration is reloaded at the start of every cycle, so pauses and
setting changes take effect without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("cardwatch monitor started; press Ctrl-C to stop")
		if err := wire.MonitorService().Run(ctx); err != nil {
			return fmt.Errorf("monitor stopped: %w", err)
		}
		fmt.Println("cardwatch monitor stopped")
		return nil
	},
}

// RunCmd returns the run command.
func RunCmd() *cobra.Command {
	return runCmd
}
