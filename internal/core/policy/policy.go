// Package policy decides what, if anything, to send for a monitored card.
// Decide is pure: no I/O, no clock reads, fully determined by its inputs.
package policy

import (
	"fmt"
	"time"
)

// Channel is a tagged delivery channel variant. Keeping this a closed set
// lets the gateway switch exhaustively instead of duck-typing providers.
type Channel string

const (
	ChannelComment Channel = "comment" // in-place comment on the source board
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelChat    Channel = "chat"
)

// Action constants for a decision.
const (
	ActionNone  = "none"  // nothing due this cycle
	ActionSend  = "send"  // send reminder at Decision.Level
	ActionFinal = "final" // terminal supervisor escalation, cycle exhausted
)

// LevelFinal is the event level recorded for the terminal escalation.
// Regular reminder levels are 0..2.
const LevelFinal = 3

// CardState is the escalation-relevant slice of a card's stored state.
type CardState struct {
	// OpenedAt anchors the current escalation cycle (board open or reopen
	// time). Whole-day offsets from this anchor key the levels.
	OpenedAt time.Time

	// Contacted is false until the first send of the cycle; ReminderLevel
	// is only meaningful once Contacted is true.
	Contacted     bool
	ReminderLevel int
	LastContactAt time.Time

	HasResponded bool
	Exhausted    bool

	// DueAt is the card's optional deadline; zero means none.
	DueAt time.Time
}

// Config is the policy-relevant configuration snapshot.
type Config struct {
	Location            *time.Location
	WeekendDays         map[time.Weekday]bool
	MaxReminderDays     int
	AllowUrgentOverride bool
	UrgencyHorizon      time.Duration
}

// Decision is the single action the policy requires for one card.
type Decision struct {
	Action   string
	Level    int
	Channels []Channel

	// Reason explains NoOps for cycle logs ("responded", "weekend", ...).
	Reason string
}

func noOp(reason string) Decision {
	return Decision{Action: ActionNone, Reason: reason}
}

// Decide maps (card state, now, config) to the next action.
//
// Levels are keyed to calendar-day offsets from the cycle anchor in the
// configured zone, never raw duration subtraction, so DST shifts and
// sub-day poll jitter cannot move a boundary. If the poller missed
// several boundaries, the decision jumps straight to the level implied
// by the elapsed days; skipped levels are never replayed.
func Decide(card CardState, now time.Time, cfg Config) Decision {
	if card.HasResponded {
		return noOp("responded")
	}
	if card.Exhausted {
		return noOp("exhausted")
	}

	local := now.In(cfg.Location)

	if cfg.WeekendDays[local.Weekday()] {
		if !cfg.AllowUrgentOverride || !urgent(card, local, cfg.UrgencyHorizon) {
			return noOp("weekend")
		}
	}

	days := daysBetween(card.OpenedAt, local, cfg.Location)
	if days < 0 {
		days = 0
	}

	target := targetLevel(days, cfg.MaxReminderDays)

	last := -1
	if card.Contacted {
		last = card.ReminderLevel
	}
	if target <= last {
		return noOp("not-due")
	}

	// At most one send per whole day, regardless of level jumps.
	if card.Contacted && daysBetween(card.LastContactAt, local, cfg.Location) < 1 {
		return noOp("not-due")
	}

	if target == LevelFinal {
		return Decision{
			Action:   ActionFinal,
			Level:    LevelFinal,
			Channels: []Channel{ChannelEmail, ChannelChat},
			Reason:   "exhausted-max-days",
		}
	}

	return Decision{
		Action:   ActionSend,
		Level:    target,
		Channels: channelsFor(target),
		Reason:   fmt.Sprintf("level-%d-due", target),
	}
}

// targetLevel maps elapsed whole days to the level due at that offset.
// Day 0 is the comment, day 1 email, day 2 and later SMS/chat+email,
// and at maxReminderDays the terminal escalation.
func targetLevel(days, maxReminderDays int) int {
	if days >= maxReminderDays {
		return LevelFinal
	}
	if days > 2 {
		return 2
	}
	return days
}

// channelsFor returns the delivery channels for a reminder level.
func channelsFor(level int) []Channel {
	switch level {
	case 0:
		return []Channel{ChannelComment}
	case 1:
		return []Channel{ChannelEmail}
	default:
		return []Channel{ChannelSMS, ChannelChat, ChannelEmail}
	}
}

// urgent reports whether the card's deadline falls within the override
// horizon. Overdue cards are always urgent.
func urgent(card CardState, now time.Time, horizon time.Duration) bool {
	if card.DueAt.IsZero() {
		return false
	}
	return card.DueAt.Sub(now) <= horizon
}

// DaysOpen reports how many calendar days a card opened at openedAt has
// been waiting as of now, for reminder copy and cycle logs.
func DaysOpen(openedAt, now time.Time, loc *time.Location) int {
	return daysBetween(openedAt, now, loc)
}

// daysBetween returns the calendar-day offset from a to b in loc.
// Both instants are truncated to their local midnight first, so a 23- or
// 25-hour DST day still counts as exactly one day.
func daysBetween(a, b time.Time, loc *time.Location) int {
	am := midnight(a, loc)
	bm := midnight(b, loc)
	return int(bm.Sub(am).Round(24*time.Hour) / (24 * time.Hour))
}

func midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
