// Package config loads and persists the cardwatch configuration.
//
// The monitor reloads the file at the start of every poll cycle, so a
// cycle always sees one consistent snapshot. Partial updates go through
// Set so operators never hand-edit the file while the poller is running.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML in the
// "15m" / "48h" form instead of raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Supervisor is a terminal-escalation recipient configured outside the board.
type Supervisor struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email,omitempty"`
	Phone      string `yaml:"phone,omitempty"`
	ChatHandle string `yaml:"chat_handle,omitempty"`
}

// BoardConfig holds the task-board API collaborator settings.
type BoardConfig struct {
	// BaseURL is the board API root, e.g. https://board.example.com/api
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token for the board API.
	Token string `yaml:"token"`

	// SystemIdentity is the author name the board reports for comments
	// posted by cardwatch itself. Activity by this author is never a
	// response.
	SystemIdentity string `yaml:"system_identity"`

	// PageSize bounds each "list monitored cards" request.
	PageSize int `yaml:"page_size"`
}

// DeliveryConfig holds the delivery-provider endpoints.
type DeliveryConfig struct {
	EmailURL   string `yaml:"email_url"`
	EmailToken string `yaml:"email_token"`
	EmailFrom  string `yaml:"email_from"`

	SMSURL   string `yaml:"sms_url"`
	SMSToken string `yaml:"sms_token"`

	ChatWebhookURL string `yaml:"chat_webhook_url"`
}

// Config is the process-wide configuration. A loaded Config is treated as
// immutable for the duration of one poll cycle.
type Config struct {
	// WeekendDays are weekdays with no sends (0=Sunday .. 6=Saturday).
	WeekendDays []int `yaml:"weekend_days"`

	// MaxReminderDays is the whole-day count after which the cycle goes
	// to the terminal supervisor escalation.
	MaxReminderDays int `yaml:"max_reminder_days"`

	// Timezone is the IANA zone used for all day-boundary arithmetic.
	Timezone string `yaml:"timezone"`

	// AllowUrgentOverride lets urgent cards escalate on weekend days.
	AllowUrgentOverride bool `yaml:"allow_urgent_override"`

	// UrgencyHorizon bounds how close a card's due date must be for the
	// urgent override to apply.
	UrgencyHorizon Duration `yaml:"urgency_horizon"`

	// PollInterval is the cadence of the monitor loop.
	PollInterval Duration `yaml:"poll_interval"`

	// CycleDeadline bounds one cycle; cards not started by then wait for
	// the next cycle.
	CycleDeadline Duration `yaml:"cycle_deadline"`

	// Workers bounds how many card pipelines run concurrently.
	Workers int `yaml:"workers"`

	// Paused suspends sends without stopping the poll loop.
	Paused bool `yaml:"paused"`

	Supervisors []Supervisor   `yaml:"supervisors"`
	Board       BoardConfig    `yaml:"board"`
	Delivery    DeliveryConfig `yaml:"delivery"`

	// DBPath overrides the default state database location.
	DBPath string `yaml:"db_path,omitempty"`
}

// Defaults applied when the file omits a field.
const (
	DefaultMaxReminderDays = 3
	DefaultTimezone        = "UTC"
	DefaultPollInterval    = 15 * time.Minute
	DefaultCycleDeadline   = 10 * time.Minute
	DefaultWorkers         = 4
	DefaultPageSize        = 100
	DefaultUrgencyHorizon  = 48 * time.Hour
)

// DefaultPath returns ~/.cardwatch/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cardwatch", "config.yaml"), nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Set applies a partial update (key=value pairs) to the file at path.
// Only whitelisted scalar fields can be set this way; anything structural
// is edited in the file directly.
func Set(path string, updates map[string]string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	for key, value := range updates {
		if err := cfg.setField(key, value); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setField(key, value string) error {
	switch key {
	case "paused":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for paused: %q", value)
		}
		c.Paused = b
	case "timezone":
		c.Timezone = value
	case "max_reminder_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_reminder_days: %q", value)
		}
		c.MaxReminderDays = n
	case "allow_urgent_override":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for allow_urgent_override: %q", value)
		}
		c.AllowUrgentOverride = b
	case "poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for poll_interval: %q", value)
		}
		c.PollInterval = Duration(d)
	case "cycle_deadline":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for cycle_deadline: %q", value)
		}
		c.CycleDeadline = Duration(d)
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workers: %q", value)
		}
		c.Workers = n
	case "weekend_days":
		days, err := parseWeekendDays(value)
		if err != nil {
			return err
		}
		c.WeekendDays = days
	default:
		return fmt.Errorf("unknown or non-settable config key: %q", key)
	}
	return nil
}

func parseWeekendDays(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return []int{}, nil
	}
	parts := strings.Split(value, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid weekend day: %q", p)
		}
		days = append(days, n)
	}
	return days, nil
}

func (c *Config) applyDefaults() {
	if c.WeekendDays == nil {
		c.WeekendDays = []int{0, 6}
	}
	if c.MaxReminderDays == 0 {
		c.MaxReminderDays = DefaultMaxReminderDays
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.UrgencyHorizon == 0 {
		c.UrgencyHorizon = Duration(DefaultUrgencyHorizon)
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.CycleDeadline == 0 {
		c.CycleDeadline = Duration(DefaultCycleDeadline)
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Board.PageSize == 0 {
		c.Board.PageSize = DefaultPageSize
	}
}

// Location resolves the configured timezone. Validate guarantees this
// succeeds on a loaded Config.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WeekendSet returns the weekend days as a lookup set.
func (c *Config) WeekendSet() map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(c.WeekendDays))
	for _, d := range c.WeekendDays {
		set[time.Weekday(d)] = true
	}
	return set
}

// StatePath returns the sqlite database path, honoring DBPath.
func (c *Config) StatePath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cardwatch", "cardwatch.db"), nil
}
