package broadcast

import (
	"context"
	"log/slog"

	"github.com/clinicflow/clinicflow/pkg/models"
)

// Deliverer pushes an already persisted event toward one connected client.
// Delivery is best effort and at-least-once: the durable event row is the
// source of truth, and consumers must tolerate duplicates.
type Deliverer interface {
	Deliver(ctx context.Context, targetUserID string, event *models.Event) error
	Close() error
}

// SlogDeliverer logs deliveries instead of pushing them anywhere. Used in
// development and as a fallback when no transport is configured.
type SlogDeliverer struct {
	logger *slog.Logger
}

func NewSlogDeliverer(logger *slog.Logger) *SlogDeliverer {
	return &SlogDeliverer{logger: logger}
}

func (d *SlogDeliverer) Deliver(ctx context.Context, targetUserID string, event *models.Event) error {
	d.logger.InfoContext(ctx, "Delivering event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"workflow_id", event.WorkflowID,
		"target_user", targetUserID,
	)

	return nil
}

func (d *SlogDeliverer) Close() error {
	return nil
}
