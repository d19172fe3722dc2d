package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/cli"
	"github.com/example/cardwatch/internal/version"
	"github.com/example/cardwatch/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cardwatch",
		Short:   "cardwatch - escalating reminders for unattended board cards",
		Version: version.String(),
		Long: `cardwatch polls a task board for open cards, nags their assignees on
an escalating schedule (comment, then email, then SMS and chat), and
escalates to a supervisor when nobody responds. Any human reply on a
card stops its reminders.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				wire.SetConfigPath(path)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.cardwatch/config.yaml)")

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.CycleCmd())
	rootCmd.AddCommand(cli.MonitorCmd())
	rootCmd.AddCommand(cli.CardCmd())
	rootCmd.AddCommand(cli.EventsCmd())
	rootCmd.AddCommand(cli.ConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
