// Package app contains the application services implementing the primary
// ports. Services hold no state of their own; they orchestrate the
// secondary ports injected at construction.
package app

import (
	"context"
	"fmt"

	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// CardServiceImpl implements the CardService primary port.
type CardServiceImpl struct {
	cards secondary.CardRepository
}

var _ primary.CardService = (*CardServiceImpl)(nil)

// NewCardService creates a card service over the given repository.
func NewCardService(cards secondary.CardRepository) *CardServiceImpl {
	return &CardServiceImpl{cards: cards}
}

// GetCard retrieves a card with its recipients.
func (s *CardServiceImpl) GetCard(ctx context.Context, cardID string) (*primary.Card, error) {
	rec, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return recordToCard(rec), nil
}

// ListCards lists cards with optional filters.
func (s *CardServiceImpl) ListCards(ctx context.Context, filters primary.CardFilters) ([]*primary.Card, error) {
	recs, err := s.cards.List(ctx, secondary.CardFilters{
		Status:    filters.Status,
		Responded: filters.Responded,
		Limit:     filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	cards := make([]*primary.Card, len(recs))
	for i, rec := range recs {
		cards[i] = recordToCard(rec)
	}
	return cards, nil
}

func recordToCard(rec *secondary.CardRecord) *primary.Card {
	recipients := make([]primary.Recipient, len(rec.Recipients))
	for i, r := range rec.Recipients {
		recipients[i] = primary.Recipient{
			Identity:   r.Identity,
			Email:      r.Email,
			Phone:      r.Phone,
			ChatHandle: r.ChatHandle,
		}
	}
	return &primary.Card{
		ID:            rec.ID,
		Name:          rec.Name,
		BoardRef:      rec.BoardRef,
		Status:        rec.Status,
		CycleSeq:      rec.CycleSeq,
		OpenedAt:      rec.OpenedAt,
		DueAt:         rec.DueAt,
		ReminderLevel: rec.ReminderLevel,
		Contacted:     rec.Contacted,
		LastContactAt: rec.LastContactAt,
		HasResponded:  rec.HasResponded,
		RespondedAt:   rec.RespondedAt,
		RespondedBy:   rec.RespondedBy,
		Recipients:    recipients,
	}
}
