package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Validate checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
// A process must not start polling with an invalid configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxReminderDays < 1 {
		errs = append(errs, &ValidationError{
			Field:   "max_reminder_days",
			Value:   c.MaxReminderDays,
			Message: "must be at least 1",
		})
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "timezone",
			Value:   c.Timezone,
			Message: "must be a valid IANA timezone name",
		})
	}

	if len(c.WeekendDays) >= 7 {
		errs = append(errs, &ValidationError{
			Field:   "weekend_days",
			Value:   c.WeekendDays,
			Message: "cannot suppress all seven weekdays",
		})
	}
	for _, d := range c.WeekendDays {
		if d < 0 || d > 6 {
			errs = append(errs, &ValidationError{
				Field:   "weekend_days",
				Value:   d,
				Message: "days must be in 0 (Sunday) through 6 (Saturday)",
			})
		}
	}

	if c.Workers < 1 {
		errs = append(errs, &ValidationError{
			Field:   "workers",
			Value:   c.Workers,
			Message: "must be at least 1",
		})
	}

	if c.PollInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "poll_interval",
			Value:   c.PollInterval,
			Message: "must be positive",
		})
	}

	if c.CycleDeadline <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "cycle_deadline",
			Value:   c.CycleDeadline,
			Message: "must be positive",
		})
	}

	if c.UrgencyHorizon < 0 {
		errs = append(errs, &ValidationError{
			Field:   "urgency_horizon",
			Value:   c.UrgencyHorizon,
			Message: "cannot be negative",
		})
	}

	if c.Board.PageSize < 1 {
		errs = append(errs, &ValidationError{
			Field:   "board.page_size",
			Value:   c.Board.PageSize,
			Message: "must be at least 1",
		})
	}

	return errors.Join(errs...)
}
