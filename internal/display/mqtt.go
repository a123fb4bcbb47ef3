package display

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 10 * time.Second

// MQTTConfig describes the broker connection for [NewMQTT].
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
}

// MQTT publishes labels to a topic. It implements [Publisher].
type MQTT struct {
	client   mqtt.Client
	topic    string
	qos      byte
	retained bool
}

// NewMQTT connects to the broker and returns a publisher.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to MQTT broker", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return NewMQTTWithClient(client, cfg.Topic, cfg.QoS, cfg.Retained), nil
}

// NewMQTTWithClient wraps an existing client. Intended for tests.
func NewMQTTWithClient(client mqtt.Client, topic string, qos byte, retained bool) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos, retained: retained}
}

// Publish sends label as the message payload.
func (m *MQTT) Publish(ctx context.Context, label string) error {
	token := m.client.Publish(m.topic, m.qos, m.retained, []byte(label))
	deadline := mqttPublishTimeout
	if dl, ok := ctx.Deadline(); ok {
		deadline = time.Until(dl)
	}
	if !token.WaitTimeout(deadline) {
		return fmt.Errorf("publishing to %s: timed out", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
