package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/clinicflow/clinicflow/pkg/broadcast"
	"github.com/clinicflow/clinicflow/pkg/channels/gochannel"
	"github.com/clinicflow/clinicflow/pkg/channels/kafka"
)

// NewDeliverer builds the event delivery channel from the provider name.
// Kafka fans events out to other service instances, redis publishes to
// per-user channels, gochannel serves a single process, and log just writes
// deliveries to the logger.
func NewDeliverer(provider, redisURL string, logger *slog.Logger) (broadcast.Deliverer, error) {
	switch provider {
	case "kafka":
		pub, _, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "clinicflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka channel: %w", err)
		}

		return broadcast.NewWatermillDeliverer(pub), nil
	case "redis":
		deliverer, err := broadcast.NewRedisDeliverer(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis deliverer: %w", err)
		}

		return deliverer, nil
	case "gochannel":
		pub, _, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel: %w", err)
		}

		return broadcast.NewWatermillDeliverer(pub), nil
	case "log", "":
		return broadcast.NewSlogDeliverer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported deliverer provider: %s", provider)
	}
}
