package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/wire"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the escalation event log",
	Long:  "List escalation delivery attempts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cardID, _ := cmd.Flags().GetString("card")
		outcome, _ := cmd.Flags().GetString("outcome")
		limit, _ := cmd.Flags().GetInt("limit")

		filters := primary.EventFilters{CardID: cardID, Outcome: outcome, Limit: limit}
		if level, err := cmd.Flags().GetInt("level"); err == nil && cmd.Flags().Changed("level") {
			filters.Level = &level
		}

		events, err := wire.EventService().ListEvents(cmd.Context(), filters)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No events found")
			return nil
		}

		fmt.Println()
		for _, e := range events {
			fmt.Printf("%-14s", e.CardID)
			printEventLine(e)
		}
		fmt.Println()

		return nil
	},
}

// EventsCmd returns the events command.
func EventsCmd() *cobra.Command {
	eventsCmd.Flags().StringP("card", "c", "", "Filter by card ID")
	eventsCmd.Flags().Int("level", 0, "Filter by escalation level")
	eventsCmd.Flags().StringP("outcome", "o", "", "Filter by outcome (delivered, failed)")
	eventsCmd.Flags().IntP("limit", "n", 50, "Limit the number of events shown")
	return eventsCmd
}
