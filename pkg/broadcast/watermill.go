package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/clinicflow/clinicflow/pkg/events"
	"github.com/clinicflow/clinicflow/pkg/models"
)

// TargetUserMetadataKey carries the delivery target on broker messages, so
// edge services can route the payload to the right connection.
const TargetUserMetadataKey = "target_user"

// WatermillDeliverer publishes events to a message broker through a watermill
// publisher. With the Kafka channel this fans events out to other service
// instances; with the in-memory channel it serves a single process.
type WatermillDeliverer struct {
	publisher message.Publisher
}

func NewWatermillDeliverer(publisher message.Publisher) *WatermillDeliverer {
	return &WatermillDeliverer{publisher: publisher}
}

func (d *WatermillDeliverer) Deliver(_ context.Context, targetUserID string, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, event.WorkflowID)
	msg.Metadata.Set(events.EventTypeMetadataKey, event.EventType)
	msg.Metadata.Set(TargetUserMetadataKey, targetUserID)

	return d.publisher.Publish(events.Topic, msg)
}

func (d *WatermillDeliverer) Close() error {
	return d.publisher.Close()
}
