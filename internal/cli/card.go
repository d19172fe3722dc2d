package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/wire"
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Inspect monitored cards",
	Long:  "List and show the escalation state of monitored cards",
}

var cardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filters := primary.CardFilters{Status: status, Limit: limit}
		if responded, err := cmd.Flags().GetBool("responded"); err == nil && cmd.Flags().Changed("responded") {
			filters.Responded = &responded
		}

		cards, err := wire.CardService().ListCards(cmd.Context(), filters)
		if err != nil {
			return fmt.Errorf("failed to list cards: %w", err)
		}

		if len(cards) == 0 {
			fmt.Println("No cards found")
			return nil
		}

		fmt.Printf("\n%-14s %-18s %-6s %-12s %s\n", "ID", "STATUS", "LEVEL", "OPENED", "NAME")
		fmt.Println("────────────────────────────────────────────────────────────────────────")
		for _, c := range cards {
			level := "-"
			if c.Contacted {
				level = fmt.Sprintf("%d", c.ReminderLevel)
			}
			fmt.Printf("%-14s %-18s %-6s %-12s %s\n",
				c.ID, statusColor(c.Status), level, c.OpenedAt.Format("2006-01-02"), c.Name)
		}
		fmt.Println()

		return nil
	},
}

var cardShowCmd = &cobra.Command{
	Use:   "show [card-id]",
	Short: "Show card escalation details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		card, err := wire.CardService().GetCard(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get card: %w", err)
		}

		fmt.Printf("\nCard:    %s\n", card.ID)
		fmt.Printf("Name:    %s\n", card.Name)
		fmt.Printf("Board:   %s\n", card.BoardRef)
		fmt.Printf("Status:  %s\n", statusColor(card.Status))
		fmt.Printf("Cycle:   %d\n", card.CycleSeq)
		fmt.Printf("Opened:  %s\n", card.OpenedAt.Format("2006-01-02 15:04"))
		if !card.DueAt.IsZero() {
			fmt.Printf("Due:     %s\n", card.DueAt.Format("2006-01-02 15:04"))
		}
		if card.Contacted {
			fmt.Printf("Level:   %d (last contact %s)\n", card.ReminderLevel, card.LastContactAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Println("Level:   not yet contacted")
		}
		if card.HasResponded {
			fmt.Printf("Responded: %s by %s\n", card.RespondedAt.Format("2006-01-02 15:04"), card.RespondedBy)
		}
		fmt.Println()

		if len(card.Recipients) > 0 {
			fmt.Println("Recipients:")
			for _, r := range card.Recipients {
				var addrs []string
				if r.Email != "" {
					addrs = append(addrs, r.Email)
				}
				if r.Phone != "" {
					addrs = append(addrs, r.Phone)
				}
				if r.ChatHandle != "" {
					addrs = append(addrs, r.ChatHandle)
				}
				fmt.Printf("  - %s (%s)\n", r.Identity, strings.Join(addrs, ", "))
			}
			fmt.Println()
		}

		events, err := wire.EventService().ListEvents(cmd.Context(), primary.EventFilters{CardID: card.ID, Limit: 10})
		if err == nil && len(events) > 0 {
			fmt.Println("Recent escalations:")
			for _, e := range events {
				printEventLine(e)
			}
			fmt.Println()
		}

		return nil
	},
}

func statusColor(status string) string {
	switch status {
	case primary.CardStatusResolved:
		return color.New(color.FgHiGreen).Sprint(status)
	case primary.CardStatusExhausted:
		return color.New(color.FgRed).Sprint(status)
	case primary.CardStatusAwaitingResponse:
		return color.New(color.FgYellow).Sprint(status)
	case primary.CardStatusArchived:
		return color.New(color.FgHiBlack).Sprint(status)
	default:
		return status
	}
}

func printEventLine(e *primary.Event) {
	mark := color.New(color.FgHiGreen).Sprint("✓")
	detail := e.Recipient
	if e.Outcome == "failed" {
		mark = color.New(color.FgRed).Sprint("✗")
		detail = fmt.Sprintf("%s (%s)", e.Recipient, e.ErrorClass)
	}
	fmt.Printf("  %s %s  L%d %-8s %s\n", mark, e.CreatedAt.Format(time.DateTime), e.Level, e.Channel, detail)
}

// CardCmd returns the card command with its subcommands.
func CardCmd() *cobra.Command {
	cardListCmd.Flags().StringP("status", "s", "", "Filter by status (open, awaiting_response, resolved, exhausted, archived)")
	cardListCmd.Flags().Bool("responded", false, "Filter by whether a response was detected")
	cardListCmd.Flags().IntP("limit", "n", 0, "Limit the number of cards shown")

	cardCmd.AddCommand(cardListCmd)
	cardCmd.AddCommand(cardShowCmd)
	return cardCmd
}
