package alert

import (
	"errors"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"sync"
	"time"
)

// MQTTConfig configures the MQTT publisher
type MQTTConfig struct {
	// Broker is the broker address, eg: tcp://localhost:1883
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	// Topic is the prefix events are published under as <topic>/<kind>
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Encoding Encoding      `yaml:"encoding"`
	Timeout  time.Duration `yaml:"timeout"`
}

// publishClient is the part of mqtt.Client the publisher uses
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes events to an MQTT broker
type MQTT struct {
	cfg    MQTTConfig
	client publishClient
	log    zerolog.Logger

	mu        sync.Mutex
	published uint64
	failed    uint64
}

// NewMQTT connects to the broker
func NewMQTT(cfg MQTTConfig, log zerolog.Logger) (*MQTT, error) {

	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not set")
	}

	cfg = withDefaults(cfg)
	log = log.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connection established")
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).
			Msg("MQTT connection lost, will auto-reconnect")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	if !token.WaitTimeout(cfg.Timeout) {
		client.Disconnect(0)
		return nil, errors.New("mqtt connection timeout")
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newMQTT(cfg, client, log), nil
}

func newMQTT(cfg MQTTConfig, client publishClient, log zerolog.Logger) *MQTT {
	return &MQTT{
		cfg:    withDefaults(cfg),
		client: client,
		log:    log,
	}
}

func withDefaults(cfg MQTTConfig) MQTTConfig {

	if cfg.ClientID == "" {
		cfg.ClientID = "framewatch"
	}

	if cfg.Topic == "" {
		cfg.Topic = "framewatch/alerts"
	}

	if cfg.Encoding == "" {
		cfg.Encoding = JSON
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return cfg
}

// Publish sends the event to <topic>/<kind>
func (m *MQTT) Publish(ev Event) error {

	payload, err := m.cfg.Encoding.Encode(ev)

	if err != nil {
		m.fail()
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", m.cfg.Topic, ev.Kind)
	token := m.client.Publish(topic, m.cfg.QoS, false, payload)

	if !token.WaitTimeout(m.cfg.Timeout) {
		m.fail()
		return errors.New("publish timeout")
	}

	if err := token.Error(); err != nil {
		m.fail()
		return fmt.Errorf("publish failed: %w", err)
	}

	m.mu.Lock()
	m.published++
	m.mu.Unlock()

	m.log.Debug().Str("topic", topic).Int("size", len(payload)).Msg("Event published")

	return nil
}

func (m *MQTT) fail() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

// Counts returns the number of published and failed events
func (m *MQTT) Counts() (published, failed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.published, m.failed
}

// Close disconnects from the broker
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
