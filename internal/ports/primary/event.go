package primary

import (
	"context"
	"time"
)

// EventService defines the primary port for the escalation history.
type EventService interface {
	// ListEvents lists escalation events with optional filters.
	ListEvents(ctx context.Context, filters EventFilters) ([]*Event, error)
}

// Event represents one escalation delivery attempt at the port boundary.
type Event struct {
	ID                string
	CardID            string
	CycleSeq          int
	Level             int
	Channel           string
	Recipient         string
	Outcome           string
	ErrorClass        string
	ProviderMessageID string
	CreatedAt         time.Time
}

// EventFilters contains filter options for listing events.
type EventFilters struct {
	CardID  string
	Level   *int
	Outcome string
	Limit   int
}
