package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigYAML is the commented starter file written by `cardwatch init`.
const defaultConfigYAML = `# cardwatch configuration.
# Reloaded at the start of every poll cycle; edit or use "cardwatch config set".

# Weekdays with no reminder sends (0=Sunday .. 6=Saturday).
weekend_days: [0, 6]

# Whole days without a response before the terminal supervisor escalation.
max_reminder_days: 3

# IANA zone used for all day-boundary arithmetic.
timezone: UTC

# Let cards due within urgency_horizon escalate even on weekend days.
allow_urgent_override: false
urgency_horizon: 48h

# Monitor loop cadence and per-cycle deadline.
poll_interval: 15m
cycle_deadline: 10m

# Concurrent card pipelines per cycle.
workers: 4

# Suspend sends without stopping the loop ("cardwatch monitor pause").
paused: false

# Terminal-escalation recipients.
supervisors:
  - name: ops-lead
    email: ops-lead@example.com

board:
  base_url: https://board.example.com/api
  token: ""
  # Comments authored by this identity are never counted as responses.
  system_identity: cardwatch-bot
  page_size: 100

delivery:
  email_url: https://mail.example.com/v1/send
  email_token: ""
  email_from: cardwatch@example.com
  sms_url: https://sms.example.com/v1/messages
  sms_token: ""
  chat_webhook_url: ""
`

// WriteDefault writes the commented starter config to path.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
