package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"impact-backend/internal/device"
	"impact-backend/internal/metrics"
)

const defaultOpTimeout = 5 * time.Second

// TopicConfig holds the gateway topic patterns. Patterns may contain
// {device_id}, {service_id} and {char_id} placeholders.
type TopicConfig struct {
	ControlTopic string // e.g., "ble/{device_id}/control"
	WriteTopic   string // e.g., "ble/{device_id}/{service_id}/{char_id}/write"
	NotifyTopic  string // e.g., "ble/{device_id}/{service_id}/{char_id}/notify"
}

// DefaultTopicConfig returns the topic layout of the BLE gateway
func DefaultTopicConfig() TopicConfig {
	return TopicConfig{
		ControlTopic: "ble/{device_id}/control",
		WriteTopic:   "ble/{device_id}/{service_id}/{char_id}/write",
		NotifyTopic:  "ble/{device_id}/{service_id}/{char_id}/notify",
	}
}

// controlMessage asks the gateway to manage the BLE link of a device
type controlMessage struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id"`
}

// Transport implements device.Transport on top of a BLE-to-MQTT gateway
type Transport struct {
	client    mqtt.Client
	topics    TopicConfig
	opTimeout time.Duration
	metrics   *metrics.Metrics

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler // notify topic -> handler
}

var _ device.Transport = (*Transport)(nil)

// NewTransport creates a transport publishing through client
func NewTransport(client mqtt.Client, topics TopicConfig, m *metrics.Metrics) *Transport {
	return &Transport{
		client:    client,
		topics:    topics,
		opTimeout: defaultOpTimeout,
		metrics:   m,
		subs:      make(map[string]mqtt.MessageHandler),
	}
}

// Connect asks the gateway to open the BLE link to deviceID
func (t *Transport) Connect(ctx context.Context, deviceID string) error {
	payload, err := json.Marshal(controlMessage{Action: "connect", DeviceID: deviceID})
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}

	topic := formatTopic(t.topics.ControlTopic, deviceID, "", "")
	if err := t.wait(ctx, t.client.Publish(topic, 1, false, payload)); err != nil {
		t.metrics.TransportError("connect")
		return fmt.Errorf("failed to publish connect for %s: %w", deviceID, err)
	}

	log.Printf("MQTT Transport: Requested connection to %s on %s", deviceID, topic)
	return nil
}

// Write sends data to a characteristic of deviceID
func (t *Transport) Write(ctx context.Context, deviceID, serviceID, charID string, data []byte) error {
	topic := formatTopic(t.topics.WriteTopic, deviceID, serviceID, charID)
	if err := t.wait(ctx, t.client.Publish(topic, 1, false, data)); err != nil {
		t.metrics.TransportError("write")
		return fmt.Errorf("failed to write to %s: %w", topic, err)
	}

	log.Printf("MQTT Transport: Wrote %d bytes to %s", len(data), topic)
	return nil
}

// Subscribe delivers every notification of a characteristic to onData.
// Payloads are copied so onData may keep them.
func (t *Transport) Subscribe(ctx context.Context, deviceID, serviceID, charID string, onData device.DataHandler) (device.Subscription, error) {
	topic := formatTopic(t.topics.NotifyTopic, deviceID, serviceID, charID)

	handler := func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		data := make([]byte, len(payload))
		copy(data, payload)
		onData(data)
	}

	if err := t.wait(ctx, t.client.Subscribe(topic, 1, handler)); err != nil {
		t.metrics.TransportError("subscribe")
		return device.Subscription{}, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	t.mu.Lock()
	t.subs[topic] = handler
	t.mu.Unlock()

	log.Printf("MQTT Transport: Subscribed to %s", topic)
	return device.Subscription{
		DeviceID:  deviceID,
		ServiceID: serviceID,
		CharID:    charID,
		Topic:     topic,
	}, nil
}

// Unsubscribe removes a subscription created by Subscribe
func (t *Transport) Unsubscribe(ctx context.Context, sub device.Subscription) error {
	t.mu.Lock()
	delete(t.subs, sub.Topic)
	t.mu.Unlock()

	if err := t.wait(ctx, t.client.Unsubscribe(sub.Topic)); err != nil {
		t.metrics.TransportError("unsubscribe")
		return fmt.Errorf("failed to unsubscribe from %s: %w", sub.Topic, err)
	}

	log.Printf("MQTT Transport: Unsubscribed from %s", sub.Topic)
	return nil
}

// Resubscribe restores every live subscription on the broker. It runs after
// a reconnect, when a clean session has lost them. Failures are logged and
// counted; the remaining topics are still attempted.
func (t *Transport) Resubscribe() {
	t.mu.Lock()
	subs := make(map[string]mqtt.MessageHandler, len(t.subs))
	for topic, handler := range t.subs {
		subs[topic] = handler
	}
	t.mu.Unlock()

	for topic, handler := range subs {
		if err := t.wait(context.Background(), t.client.Subscribe(topic, 1, handler)); err != nil {
			t.metrics.TransportError("resubscribe")
			log.Printf("MQTT Transport: Failed to resubscribe to %s: %v", topic, err)
			continue
		}
		log.Printf("MQTT Transport: Resubscribed to %s", topic)
	}
}

// Subscriptions returns the number of live subscriptions
func (t *Transport) Subscriptions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// wait blocks until token completes, ctx is done or the operation timeout
// elapses.
func (t *Transport) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(t.opTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", t.opTimeout)
	}
}

// formatTopic replaces the topic placeholders with actual ids
func formatTopic(topicPattern, deviceID, serviceID, charID string) string {
	return strings.NewReplacer(
		"{device_id}", deviceID,
		"{service_id}", serviceID,
		"{char_id}", charID,
	).Replace(topicPattern)
}
