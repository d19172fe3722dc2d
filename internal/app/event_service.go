package app

import (
	"context"
	"fmt"

	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// EventServiceImpl implements the EventService primary port.
type EventServiceImpl struct {
	events secondary.EventRepository
}

var _ primary.EventService = (*EventServiceImpl)(nil)

// NewEventService creates an event service over the given repository.
func NewEventService(events secondary.EventRepository) *EventServiceImpl {
	return &EventServiceImpl{events: events}
}

// ListEvents lists escalation events with optional filters, newest first.
func (s *EventServiceImpl) ListEvents(ctx context.Context, filters primary.EventFilters) ([]*primary.Event, error) {
	recs, err := s.events.List(ctx, secondary.EventFilters{
		CardID:  filters.CardID,
		Level:   filters.Level,
		Outcome: filters.Outcome,
		Limit:   filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*primary.Event, len(recs))
	for i, rec := range recs {
		events[i] = recordToEvent(rec)
	}
	return events, nil
}

func recordToEvent(rec *secondary.EventRecord) *primary.Event {
	return &primary.Event{
		ID:                rec.ID,
		CardID:            rec.CardID,
		CycleSeq:          rec.CycleSeq,
		Level:             rec.Level,
		Channel:           rec.Channel,
		Recipient:         rec.Recipient,
		Outcome:           rec.Outcome,
		ErrorClass:        rec.ErrorClass,
		ProviderMessageID: rec.ProviderMessageID,
		CreatedAt:         rec.CreatedAt,
	}
}
