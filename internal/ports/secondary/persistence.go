// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the engine drives
// external systems: the state store, the board API, delivery providers,
// and the template renderer.
package secondary

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for persistence outcomes the scheduler must distinguish.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict indicates an optimistic write lost a race with a
	// concurrent cycle. The loser treats the card as already handled.
	ErrVersionConflict = errors.New("card version conflict")

	// ErrDuplicateClaim indicates the (card, cycle, level) send slot was
	// already claimed. The caller treats the level as already delivered.
	ErrDuplicateClaim = errors.New("escalation level already claimed")
)

// CardRepository defines the secondary port for per-card escalation state.
type CardRepository interface {
	// Create persists a newly admitted card with its recipients.
	Create(ctx context.Context, card *CardRecord) error

	// GetByID retrieves a card and its recipients.
	GetByID(ctx context.Context, id string) (*CardRecord, error)

	// List retrieves cards matching the given filters.
	List(ctx context.Context, filters CardFilters) ([]*CardRecord, error)

	// ListMonitored retrieves all cards still tracked against the board
	// (everything not archived).
	ListMonitored(ctx context.Context) ([]*CardRecord, error)

	// UpdateEscalation advances escalation state. The write is optimistic:
	// it only applies if the stored version still equals version, and
	// returns ErrVersionConflict otherwise.
	UpdateEscalation(ctx context.Context, id string, version int, upd EscalationUpdate) error

	// MarkResponded closes the cycle as resolved. Optimistic, like
	// UpdateEscalation.
	MarkResponded(ctx context.Context, id string, version int, respondedAt time.Time, author string) error

	// Archive takes a board-closed card out of monitoring.
	Archive(ctx context.Context, id string) error

	// Reopen starts a new escalation cycle for a card whose previous
	// cycle ended: bumps the cycle sequence and resets all cycle state.
	Reopen(ctx context.Context, id string, openedAt time.Time, dueAt time.Time) error

	// SyncBoardFields refreshes board-owned fields (name, due date,
	// recipients) without touching escalation state.
	SyncBoardFields(ctx context.Context, id string, name string, dueAt time.Time, recipients []RecipientRecord) error
}

// EscalationUpdate is the escalation-state transition applied after a
// send (or after discovering the level was already claimed).
type EscalationUpdate struct {
	Status        string
	ReminderLevel int
	LastContactAt time.Time
}

// CardRecord represents a monitored card as stored in persistence.
type CardRecord struct {
	ID       string // stable external board ID
	Name     string
	BoardRef string // source board reference, e.g. "ops/maintenance"

	Status   string
	CycleSeq int
	OpenedAt time.Time
	DueAt    time.Time // zero = no deadline

	ReminderLevel int
	Contacted     bool
	LastContactAt time.Time

	HasResponded bool
	RespondedAt  time.Time
	RespondedBy  string

	// Version guards optimistic escalation writes.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time

	Recipients []RecipientRecord
}

// RecipientRecord is one assigned recipient with channel addresses.
// Recipients are ordered and unique by identity.
type RecipientRecord struct {
	Identity   string
	Email      string
	Phone      string
	ChatHandle string
}

// CardFilters contains filter options for querying cards.
type CardFilters struct {
	Status    string
	Responded *bool
	Limit     int
}

// EventRepository defines the secondary port for the immutable
// escalation event log.
type EventRepository interface {
	// ClaimLevel atomically claims the (card, cycle, level) send slot.
	// Returns ErrDuplicateClaim if a previous attempt already holds it;
	// the claim is the at-most-once guarantee for that level.
	ClaimLevel(ctx context.Context, cardID string, cycleSeq, level int, at time.Time) error

	// Record appends one immutable delivery-attempt event.
	Record(ctx context.Context, event *EventRecord) error

	// List retrieves events matching the given filters, newest first.
	List(ctx context.Context, filters EventFilters) ([]*EventRecord, error)
}

// EventRecord is one immutable escalation event: a single delivery
// attempt on one channel to one recipient.
type EventRecord struct {
	ID                string
	CardID            string
	CycleSeq          int
	Level             int
	Channel           string
	Recipient         string
	Outcome           string // delivered | failed
	ErrorClass        string // empty on success
	ProviderMessageID string
	CreatedAt         time.Time
}

// Event outcome constants.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// EventFilters contains filter options for querying escalation events.
type EventFilters struct {
	CardID  string
	Level   *int
	Outcome string
	Limit   int
}
