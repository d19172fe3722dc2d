// Package primary defines the primary ports (driving adapters) for the
// application: the service interfaces the CLI talks to.
package primary

import (
	"context"
	"time"
)

// CardService defines the primary port for card state queries.
type CardService interface {
	// GetCard retrieves a card with its recipients.
	GetCard(ctx context.Context, cardID string) (*Card, error)

	// ListCards lists cards with optional filters.
	ListCards(ctx context.Context, filters CardFilters) ([]*Card, error)
}

// Card represents a monitored card at the port boundary.
type Card struct {
	ID       string
	Name     string
	BoardRef string

	Status   string
	CycleSeq int
	OpenedAt time.Time
	DueAt    time.Time

	ReminderLevel int
	Contacted     bool
	LastContactAt time.Time

	HasResponded bool
	RespondedAt  time.Time
	RespondedBy  string

	Recipients []Recipient
}

// Recipient is one assigned recipient with channel addresses.
type Recipient struct {
	Identity   string
	Email      string
	Phone      string
	ChatHandle string
}

// CardFilters contains filter options for listing cards.
type CardFilters struct {
	Status    string
	Responded *bool
	Limit     int
}

// Card status constants. A cycle walks open → awaiting_response →
// exhausted, with resolved reachable from any non-terminal state the
// instant a response is detected. Archived cards left monitoring because
// the board closed them.
const (
	CardStatusOpen             = "open"
	CardStatusAwaitingResponse = "awaiting_response"
	CardStatusResolved         = "resolved"
	CardStatusExhausted        = "exhausted"
	CardStatusArchived         = "archived"
)
