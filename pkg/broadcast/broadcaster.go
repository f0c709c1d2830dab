// Package broadcast implements the event broadcaster: durable event records
// first, push delivery second.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// Broadcaster persists events and then hands them to the configured
// deliverers. Persist failures fail the broadcast; delivery failures are
// logged and swallowed, since the durable record already exists and clients
// can recover from history.
type Broadcaster struct {
	events     persistence.EventRepository
	deliverers []Deliverer
	logger     *slog.Logger
}

func NewBroadcaster(events persistence.EventRepository, logger *slog.Logger, deliverers ...Deliverer) *Broadcaster {
	return &Broadcaster{
		events:     events,
		deliverers: deliverers,
		logger:     logger.With("module", "broadcast"),
	}
}

// Broadcast stores the event and pushes it to every target user through all
// deliverers.
func (b *Broadcaster) Broadcast(ctx context.Context, event *models.Event) error {
	err := b.events.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	for _, targetUserID := range event.TargetUsers {
		for _, deliverer := range b.deliverers {
			err := deliverer.Deliver(ctx, targetUserID, event)
			if err != nil {
				b.logger.ErrorContext(ctx, "Event delivery failed",
					"event_id", event.ID,
					"event_type", event.EventType,
					"target_user", targetUserID,
					"error", err,
				)
			}
		}
	}

	return nil
}

// History returns a workflow's persisted events in ascending order. When
// limit is positive, the most recent limit events are returned.
func (b *Broadcaster) History(ctx context.Context, workflowID string, eventTypes []string, limit int) ([]*models.Event, error) {
	events, err := b.events.ListByWorkflow(ctx, workflowID, persistence.ListEventsOptions{
		EventTypes: eventTypes,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load event history: %w", err)
	}

	return events, nil
}

// Close shuts down all deliverers, returning the first error seen.
func (b *Broadcaster) Close() error {
	var firstErr error

	for _, deliverer := range b.deliverers {
		err := deliverer.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
