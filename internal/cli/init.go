// Package cli contains the cobra commands for the cardwatch binary.
// Commands are thin: they parse flags, call the services from wire, and
// format output.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/wire"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  "Create a commented starter config; refuses to overwrite an existing file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := wire.ConfigPath()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote starter config to %s\n", path)
		fmt.Println("  Fill in the board token and delivery endpoints, then run \"cardwatch run\"")
		return nil
	},
}

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	return initCmd
}
