package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/wire"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "Show and update the cardwatch configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(wire.ConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Re-marshal the loaded config so defaults show up too. Tokens
		// are redacted from display output.
		cfg.Board.Token = redact(cfg.Board.Token)
		cfg.Delivery.EmailToken = redact(cfg.Delivery.EmailToken)
		cfg.Delivery.SMSToken = redact(cfg.Delivery.SMSToken)

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		fmt.Printf("# %s\n", wire.ConfigPath())
		os.Stdout.Write(data)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key=value...]",
	Short: "Update configuration values",
	Long: `Update whitelisted scalar settings in the config file, e.g.

  cardwatch config set max_reminder_days=5 timezone=Europe/Berlin
  cardwatch config set weekend_days=5,6`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates := make(map[string]string, len(args))
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			updates[key] = value
		}

		if _, err := config.Set(wire.ConfigPath(), updates); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}

		for key := range updates {
			fmt.Printf("✓ Set %s\n", key)
		}
		return nil
	},
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	return "<redacted>"
}

// ConfigCmd returns the config command with its subcommands.
func ConfigCmd() *cobra.Command {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	return configCmd
}
