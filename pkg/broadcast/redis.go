package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clinicflow/clinicflow/pkg/models"
)

// RedisDeliverer publishes events over redis pub/sub, one channel per target
// user. Realtime frontends subscribe to their user channel.
type RedisDeliverer struct {
	client *redis.Client
}

func NewRedisDeliverer(redisURL string) (*RedisDeliverer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisDeliverer{client: redis.NewClient(opts)}, nil
}

// UserChannel names the pub/sub channel a user's clients listen on.
func UserChannel(userID string) string {
	return "clinicflow:user:" + userID
}

func (d *RedisDeliverer) Deliver(ctx context.Context, targetUserID string, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = d.client.Publish(ctx, UserChannel(targetUserID), payload).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to user channel %s: %w", targetUserID, err)
	}

	return nil
}

func (d *RedisDeliverer) Close() error {
	return d.client.Close()
}
