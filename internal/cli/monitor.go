package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/wire"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Control the monitor",
	Long:  "Pause, resume, and inspect the reminder monitor",
}

var monitorPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause reminder sends",
	Long:  "Suspend all sends without stopping the poll loop; takes effect next cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Set(wire.ConfigPath(), map[string]string{"paused": "true"}); err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		fmt.Println("✓ Monitoring paused")
		return nil
	},
}

var monitorResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume reminder sends",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Set(wire.ConfigPath(), map[string]string{"paused": "false"}); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
		fmt.Println("✓ Monitoring resumed")
		return nil
	},
}

var monitorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(wire.ConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		state := color.New(color.FgHiGreen).Sprint("active")
		if cfg.Paused {
			state = color.New(color.FgYellow).Sprint("paused")
		}
		fmt.Printf("\nMonitor:       %s\n", state)
		fmt.Printf("Poll interval: %s\n", cfg.PollInterval)
		fmt.Printf("Max days:      %d\n", cfg.MaxReminderDays)
		fmt.Printf("Timezone:      %s\n", cfg.Timezone)
		fmt.Println()

		cards, err := wire.CardService().ListCards(cmd.Context(), primary.CardFilters{})
		if err != nil {
			return fmt.Errorf("failed to list cards: %w", err)
		}

		counts := map[string]int{}
		for _, c := range cards {
			counts[c.Status]++
		}
		fmt.Printf("Cards: %d total", len(cards))
		for _, status := range []string{
			primary.CardStatusOpen,
			primary.CardStatusAwaitingResponse,
			primary.CardStatusResolved,
			primary.CardStatusExhausted,
			primary.CardStatusArchived,
		} {
			if counts[status] > 0 {
				fmt.Printf(", %d %s", counts[status], status)
			}
		}
		fmt.Println()
		fmt.Println()

		return nil
	},
}

// MonitorCmd returns the monitor command with its subcommands.
func MonitorCmd() *cobra.Command {
	monitorCmd.AddCommand(monitorPauseCmd)
	monitorCmd.AddCommand(monitorResumeCmd)
	monitorCmd.AddCommand(monitorStatusCmd)
	return monitorCmd
}
