// Package mqtt publishes attendance decisions and out-of-area alerts to a
// broker for downstream consumers (dashboards, payroll exports).
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldclock/fieldclock/pkg/logx"
)

// Client wraps the paho MQTT client for fieldclock event publishing.
type Client struct {
	client MQTT.Client
	logger *logx.Logger
	config *Config
}

// Config holds MQTT configuration.
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
	Enabled     bool   `json:"enabled"`
}

// DefaultConfig returns default MQTT configuration. Disabled by default; the
// daemon works standalone.
func DefaultConfig() *Config {
	return &Config{
		Broker:      "localhost",
		Port:        1883,
		ClientID:    "fieldclockd",
		TopicPrefix: "fieldclock",
		QoS:         1,
		Retain:      false,
		Enabled:     false,
	}
}

// NewClient creates an MQTT client.
func NewClient(config *Config, logger *logx.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{config: config, logger: logger}
}

// Connect establishes the broker connection. A disabled client is a no-op.
func (c *Client) Connect() error {
	if !c.config.Enabled {
		c.logger.Debug("mqtt client disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port))
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		c.logger.Warn("mqtt connection lost", "error", err.Error())
	})

	c.client = MQTT.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("mqtt client connected",
		"broker", c.config.Broker,
		"port", c.config.Port,
		"topic_prefix", c.config.TopicPrefix)
	return nil
}

// Publish serializes payload as JSON and publishes it under the configured
// topic prefix. No-op when disabled or not connected.
func (c *Client) Publish(subtopic string, payload interface{}) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode mqtt payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", c.config.TopicPrefix, subtopic)
	token := c.client.Publish(topic, c.config.QoS, c.config.Retain, raw)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	c.logger.Trace("mqtt event published", "topic", topic, "bytes", len(raw))
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
