package secondary

import (
	"context"
	"errors"
	"time"
)

// Board API failure modes the scheduler reacts to differently: an outage
// aborts the whole cycle (retried next cycle), an auth failure is fatal.
var (
	ErrBoardUnavailable = errors.New("board API unavailable")
	ErrBoardAuth        = errors.New("board API authorization failed")
)

// BoardClient defines the secondary port for the external task board.
type BoardClient interface {
	// ListMonitored returns one page of open cards matching the
	// monitoring filters, and whether more pages remain. Pages are
	// 1-based.
	ListMonitored(ctx context.Context, page, pageSize int) ([]*BoardCard, bool, error)

	// ActivitySince returns the card's activity history with timestamps
	// strictly after since. Epoch zero means full history.
	ActivitySince(ctx context.Context, cardID string, since time.Time) ([]BoardActivity, error)

	// PostComment posts a comment on the card, authored by the system
	// identity.
	PostComment(ctx context.Context, cardID, body string) error
}

// BoardCard is a card as reported by the board API.
type BoardCard struct {
	ID         string
	Name       string
	BoardRef   string
	Open       bool
	OpenedAt   time.Time
	DueAt      time.Time // zero = no deadline
	Recipients []RecipientRecord
}

// BoardActivity is one externally visible activity entry on a card.
type BoardActivity struct {
	Author    string
	Body      string
	Timestamp time.Time
}
