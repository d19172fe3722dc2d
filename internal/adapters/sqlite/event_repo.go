package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository with SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite escalation event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ClaimLevel atomically claims the (card, cycle, level) send slot.
// The primary key on escalation_claims is the at-most-once guarantee:
// a second insert for the same slot fails and maps to ErrDuplicateClaim.
func (r *EventRepository) ClaimLevel(ctx context.Context, cardID string, cycleSeq, level int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO escalation_claims (card_id, cycle_seq, level, claimed_at) VALUES (?, ?, ?, ?)`,
		cardID, cycleSeq, level, at,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return secondary.ErrDuplicateClaim
		}
		return fmt.Errorf("failed to claim escalation level: %w", err)
	}
	return nil
}

// Record appends one immutable delivery-attempt event.
func (r *EventRepository) Record(ctx context.Context, event *secondary.EventRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO escalation_events (id, card_id, cycle_seq, level, channel, recipient, outcome, error_class, provider_message_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.CardID,
		event.CycleSeq,
		event.Level,
		event.Channel,
		event.Recipient,
		event.Outcome,
		nullString(event.ErrorClass),
		nullString(event.ProviderMessageID),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record escalation event: %w", err)
	}
	return nil
}

// List retrieves events matching the given filters, newest first.
func (r *EventRepository) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	query := `SELECT id, card_id, cycle_seq, level, channel, recipient, outcome, error_class, provider_message_id, created_at FROM escalation_events WHERE 1=1`
	args := []any{}

	if filters.CardID != "" {
		query += " AND card_id = ?"
		args = append(args, filters.CardID)
	}
	if filters.Level != nil {
		query += " AND level = ?"
		args = append(args, *filters.Level)
	}
	if filters.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, filters.Outcome)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation events: %w", err)
	}
	defer rows.Close()

	var events []*secondary.EventRecord
	for rows.Next() {
		var (
			errorClass sql.NullString
			providerID sql.NullString
		)

		record := &secondary.EventRecord{}
		err := rows.Scan(
			&record.ID,
			&record.CardID,
			&record.CycleSeq,
			&record.Level,
			&record.Channel,
			&record.Recipient,
			&record.Outcome,
			&errorClass,
			&providerID,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation event: %w", err)
		}
		record.ErrorClass = errorClass.String
		record.ProviderMessageID = providerID.String
		events = append(events, record)
	}

	return events, rows.Err()
}

// Ensure EventRepository implements the interface
var _ secondary.EventRepository = (*EventRepository)(nil)
