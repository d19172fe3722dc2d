package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/wire"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single poll cycle",
	Long:  "Execute one poll cycle immediately and print the per-card outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := wire.MonitorService().RunCycle(cmd.Context())
		if err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}

		if result.Paused {
			fmt.Println(color.New(color.FgYellow).Sprint("Monitoring is paused; cycle skipped"))
			return nil
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			fmt.Println()
			for _, o := range result.Outcomes {
				printOutcomeLine(o)
			}
		}

		sent, responded, noops, deferred, errs := result.Counts()
		fmt.Printf("\nCycle finished in %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
		fmt.Printf("  cards seen: %d (admitted %d, reopened %d, archived %d)\n",
			result.CardsSeen, result.Admitted, result.Reopened, result.Archived)
		fmt.Printf("  sent: %d  responded: %d  no-op: %d  deferred: %d  errors: %d\n\n",
			sent, responded, noops, deferred, errs)

		return nil
	},
}

func printOutcomeLine(o primary.CardOutcome) {
	switch o.Action {
	case "send", "final":
		fmt.Printf("  %s %-14s level %d (%s)\n", color.New(color.FgHiGreen).Sprint("→"), o.CardID, o.Level, o.Reason)
	case primary.OutcomeResponded:
		fmt.Printf("  %s %-14s responded\n", color.New(color.FgHiGreen).Sprint("✓"), o.CardID)
	case primary.OutcomeError:
		fmt.Printf("  %s %-14s %s\n", color.New(color.FgRed).Sprint("✗"), o.CardID, o.Err)
	case primary.OutcomeDeferred:
		fmt.Printf("  %s %-14s deferred to next cycle\n", color.New(color.FgYellow).Sprint("…"), o.CardID)
	default:
		fmt.Printf("    %-14s no action (%s)\n", o.CardID, o.Reason)
	}
}

// CycleCmd returns the cycle command.
func CycleCmd() *cobra.Command {
	cycleCmd.Flags().BoolP("verbose", "v", false, "Print one line per card")
	return cycleCmd
}
