package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/uroflow/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func testEvent(id string) models.VoidingEvent {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Second)
	return models.VoidingEvent{
		ID:              id,
		DeviceID:        "ESP32_001",
		StartTime:       start,
		EndTime:         &end,
		TotalVolume:     312.5,
		Duration:        25,
		AverageFlowRate: 12.5,
	}
}

func TestPublishEvent(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	p := NewPublisher(client, "uroflow:events", 0)

	id, err := p.PublishEvent(ctx, testEvent("evt-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "uroflow:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	v := msgs[0].Values
	assert.Equal(t, "evt-1", v["event_id"])
	assert.Equal(t, "ESP32_001", v["device_id"])
	assert.Equal(t, "312.5", v["total_volume"])

	var decoded models.VoidingEvent
	require.NoError(t, json.Unmarshal([]byte(v["data"].(string)), &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	require.NotNil(t, decoded.EndTime)
	assert.InDelta(t, 25, decoded.Duration, 1e-9)
}

func TestPublishEventKeepsOrder(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	p := NewPublisher(client, "events", 100)

	for _, id := range []string{"a", "b", "c"} {
		_, err := p.PublishEvent(ctx, testEvent(id))
		require.NoError(t, err)
	}

	msgs, err := client.XRange(ctx, "events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Values["event_id"])
	assert.Equal(t, "c", msgs[2].Values["event_id"])
}

func TestPublishEventServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	p := NewPublisher(client, "events", 0)
	mr.Close()

	_, err = p.PublishEvent(context.Background(), testEvent("x"))
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	p, err := Dial(ctx, mr.Addr(), "", 0, "events", 10)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.PublishEvent(ctx, testEvent("dialled"))
	require.NoError(t, err)

	_, err = Dial(ctx, "127.0.0.1:1", "", 0, "events", 10)
	assert.Error(t, err)
}
