// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/cardwatch/internal/ports/secondary"
)

// CardRepository implements secondary.CardRepository with SQLite.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new SQLite card repository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, name, board_ref, status, cycle_seq, opened_at, due_at, reminder_level, contacted, last_contact_at, has_responded, responded_at, responded_by, version, created_at, updated_at`

// Create persists a newly admitted card with its recipients.
func (r *CardRepository) Create(ctx context.Context, card *secondary.CardRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cards (id, name, board_ref, status, cycle_seq, opened_at, due_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID,
		card.Name,
		card.BoardRef,
		card.Status,
		card.CycleSeq,
		card.OpenedAt,
		nullTime(card.DueAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}

	if err := insertRecipients(ctx, tx, card.ID, card.Recipients); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card: %w", err)
	}
	return nil
}

// GetByID retrieves a card and its recipients.
func (r *CardRepository) GetByID(ctx context.Context, id string) (*secondary.CardRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)

	record, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, secondary.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	if record.Recipients, err = r.recipients(ctx, id); err != nil {
		return nil, err
	}
	return record, nil
}

// List retrieves cards matching the given filters.
func (r *CardRepository) List(ctx context.Context, filters secondary.CardFilters) ([]*secondary.CardRecord, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.Responded != nil {
		query += " AND has_responded = ?"
		args = append(args, boolToInt(*filters.Responded))
	}

	query += " ORDER BY opened_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.queryCards(ctx, query, args...)
}

// ListMonitored retrieves all cards still tracked against the board,
// which is everything not archived. Resolved and exhausted cards stay
// tracked so board closes and reopens are observed, and so a late
// response can still resolve an exhausted cycle.
func (r *CardRepository) ListMonitored(ctx context.Context) ([]*secondary.CardRecord, error) {
	return r.queryCards(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE status != 'archived' ORDER BY opened_at ASC, id ASC`)
}

// UpdateEscalation advances escalation state with an optimistic version check.
func (r *CardRepository) UpdateEscalation(ctx context.Context, id string, version int, upd secondary.EscalationUpdate) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = ?, reminder_level = ?, contacted = 1, last_contact_at = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND version = ?`,
		upd.Status, upd.ReminderLevel, upd.LastContactAt, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation state: %w", err)
	}
	return r.checkOptimistic(ctx, result, id)
}

// MarkResponded closes the cycle as resolved with an optimistic version check.
func (r *CardRepository) MarkResponded(ctx context.Context, id string, version int, respondedAt time.Time, author string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = ?, has_responded = 1, responded_at = ?, responded_by = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND version = ?`,
		"resolved", respondedAt, author, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to mark responded: %w", err)
	}
	return r.checkOptimistic(ctx, result, id)
}

// Archive takes a board-closed card out of monitoring.
func (r *CardRepository) Archive(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = 'archived', version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to archive card: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return secondary.ErrNotFound
	}
	return nil
}

// Reopen starts a new escalation cycle for the card.
func (r *CardRepository) Reopen(ctx context.Context, id string, openedAt time.Time, dueAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET status = 'open', cycle_seq = cycle_seq + 1, opened_at = ?, due_at = ?, reminder_level = 0, contacted = 0, last_contact_at = NULL, has_responded = 0, responded_at = NULL, responded_by = NULL, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		openedAt, nullTime(dueAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to reopen card: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return secondary.ErrNotFound
	}
	return nil
}

// SyncBoardFields refreshes board-owned fields without touching
// escalation state (and without bumping the version).
func (r *CardRepository) SyncBoardFields(ctx context.Context, id string, name string, dueAt time.Time, recipients []secondary.RecipientRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE cards SET name = ?, due_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, nullTime(dueAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to sync board fields: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return secondary.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM card_recipients WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear recipients: %w", err)
	}
	if err := insertRecipients(ctx, tx, id, recipients); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit board sync: %w", err)
	}
	return nil
}

// checkOptimistic distinguishes a lost optimistic write from a missing row.
func (r *CardRepository) checkOptimistic(ctx context.Context, result sql.Result, id string) error {
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		return nil
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check card existence: %w", err)
	}
	if count == 0 {
		return secondary.ErrNotFound
	}
	return secondary.ErrVersionConflict
}

func (r *CardRepository) queryCards(ctx context.Context, query string, args ...any) ([]*secondary.CardRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*secondary.CardRecord
	for rows.Next() {
		record, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	for _, card := range cards {
		if card.Recipients, err = r.recipients(ctx, card.ID); err != nil {
			return nil, err
		}
	}
	return cards, nil
}

func (r *CardRepository) recipients(ctx context.Context, cardID string) ([]secondary.RecipientRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identity, email, phone, chat_handle FROM card_recipients WHERE card_id = ? ORDER BY position ASC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []secondary.RecipientRecord
	for rows.Next() {
		var (
			rec                secondary.RecipientRecord
			email, phone, chat sql.NullString
		)
		if err := rows.Scan(&rec.Identity, &email, &phone, &chat); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		rec.Email = email.String
		rec.Phone = phone.String
		rec.ChatHandle = chat.String
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func insertRecipients(ctx context.Context, tx *sql.Tx, cardID string, recipients []secondary.RecipientRecord) error {
	for i, rec := range recipients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO card_recipients (card_id, position, identity, email, phone, chat_handle) VALUES (?, ?, ?, ?, ?, ?)`,
			cardID, i, rec.Identity, nullString(rec.Email), nullString(rec.Phone), nullString(rec.ChatHandle),
		)
		if err != nil {
			return fmt.Errorf("failed to insert recipient %s: %w", rec.Identity, err)
		}
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (*secondary.CardRecord, error) {
	var (
		boardRef      sql.NullString
		dueAt         sql.NullTime
		contacted     int
		lastContactAt sql.NullTime
		hasResponded  int
		respondedAt   sql.NullTime
		respondedBy   sql.NullString
	)

	record := &secondary.CardRecord{}
	err := row.Scan(
		&record.ID,
		&record.Name,
		&boardRef,
		&record.Status,
		&record.CycleSeq,
		&record.OpenedAt,
		&dueAt,
		&record.ReminderLevel,
		&contacted,
		&lastContactAt,
		&hasResponded,
		&respondedAt,
		&respondedBy,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.BoardRef = boardRef.String
	record.Contacted = contacted != 0
	record.HasResponded = hasResponded != 0
	record.RespondedBy = respondedBy.String
	if dueAt.Valid {
		record.DueAt = dueAt.Time
	}
	if lastContactAt.Valid {
		record.LastContactAt = lastContactAt.Time
	}
	if respondedAt.Valid {
		record.RespondedAt = respondedAt.Time
	}
	return record, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure CardRepository implements the interface
var _ secondary.CardRepository = (*CardRepository)(nil)
