// Package mqtt subscribes to device sample topics and feeds each message
// through the ingestion pipeline.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/metrics"
	"github.com/rewired-gh/uroflow/internal/models"
)

// Ingester processes one raw sample.
type Ingester interface {
	Ingest(ctx context.Context, raw map[string]interface{}, receivedAt time.Time) models.IngestResult
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // e.g. uroflow/+/samples
	QoS      byte
}

// Consumer owns the MQTT connection and subscription.
type Consumer struct {
	client   paho.Client
	opts     Options
	ingester Ingester
	ctx      context.Context
}

// NewConsumer creates a consumer. Nothing connects until Start.
func NewConsumer(opts Options, ingester Ingester) *Consumer {
	co := paho.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectTimeout(10 * time.Second)

	c := &Consumer{opts: opts, ingester: ingester, ctx: context.Background()}

	// Resubscribe after every (re)connect, clean sessions drop subscriptions.
	co.SetOnConnectHandler(func(client paho.Client) {
		if err := c.subscribe(client); err != nil {
			logger.Error("MQTT subscribe failed: %v", err)
		}
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost: %v", err)
	})

	c.client = paho.NewClient(co)
	return c
}

// Start connects to the broker. Messages are processed with ctx until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx
	token := c.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", c.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	logger.Info("MQTT consumer connected to %s, topic %s", c.opts.Broker, c.opts.Topic)
	return nil
}

// Stop disconnects from the broker.
func (c *Consumer) Stop() {
	if c.client.IsConnected() {
		c.client.Unsubscribe(c.opts.Topic).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

func (c *Consumer) subscribe(client paho.Client) error {
	token := client.Subscribe(c.opts.Topic, c.opts.QoS, func(_ paho.Client, msg paho.Message) {
		if err := c.HandleMessage(c.ctx, msg.Topic(), msg.Payload()); err != nil {
			logger.Warn("MQTT message on %s rejected: %v", msg.Topic(), err)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.opts.Topic, err)
	}
	return nil
}

// HandleMessage decodes one payload and passes it to the ingester. The device
// ID is taken from the topic when the payload has none.
func (c *Consumer) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		metrics.MQTTMessages.WithLabelValues("malformed").Inc()
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if raw == nil {
		metrics.MQTTMessages.WithLabelValues("malformed").Inc()
		return errors.New("empty payload")
	}

	if id, ok := raw["device_id"].(string); !ok || strings.TrimSpace(id) == "" {
		if dev := DeviceFromTopic(topic); dev != "" {
			raw["device_id"] = dev
		}
	}

	res := c.ingester.Ingest(ctx, raw, time.Now())
	if !res.Success {
		metrics.MQTTMessages.WithLabelValues("rejected").Inc()
		return errors.New(res.Error)
	}
	metrics.MQTTMessages.WithLabelValues("accepted").Inc()
	return nil
}

// DeviceFromTopic extracts the device segment of "<prefix>/<device>/samples".
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	dev := parts[len(parts)-2]
	if dev == "+" || dev == "#" {
		return ""
	}
	return dev
}
