// Package stream publishes completed voiding events to a capped Redis stream
// for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/rewired-gh/uroflow/internal/models"
)

// Publisher appends completed events to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewPublisher wraps an existing client. maxLen <= 0 leaves the stream uncapped.
func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, stream string, maxLen int64) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewPublisher(client, stream, maxLen), nil
}

// PublishEvent adds one completed event and returns the stream entry ID.
func (p *Publisher) PublishEvent(ctx context.Context, event models.VoidingEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":     event.ID,
			"device_id":    event.DeviceID,
			"start_time":   strconv.FormatInt(event.StartTime.Unix(), 10),
			"total_volume": strconv.FormatFloat(event.TotalVolume, 'f', 1, 64),
			"data":         string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return id, nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
