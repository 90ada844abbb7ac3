package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient is the subset of the paho client MQTTPublisher uses.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Host     string
	Port     int
	Topic    string
	ClientID string
	QoS      byte
	Retain   bool
	// ConnectTimeout bounds the initial broker connection. Zero means 10s.
	ConnectTimeout time.Duration
}

// BrokerURL returns the tcp:// URL for the configured host and port.
func (o MQTTOptions) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// MQTTPublisher publishes each reading as a "%.2f" payload to one topic.
type MQTTPublisher struct {
	client MQTTClient
	topic  string
	qos    byte
	retain bool
}

// Compile-time interface satisfaction check.
var _ Publisher = (*MQTTPublisher)(nil)

// NewMQTTPublisher creates an MQTTPublisher backed by the given client.
// Panics if client is nil (programmer error).
func NewMQTTPublisher(client MQTTClient, topic string, qos byte, retain bool) *MQTTPublisher {
	if client == nil {
		panic("publish: NewMQTTPublisher called with nil client")
	}
	return &MQTTPublisher{client: client, topic: topic, qos: qos, retain: retain}
}

// DialMQTT connects to the broker and returns a publisher for opts.Topic.
// The paho client reconnects on its own after the first connection.
func DialMQTT(ctx context.Context, opts MQTTOptions, log *slog.Logger) (*MQTTPublisher, error) {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	co := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL()).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("[MQTT] connection lost", "error", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Info("[MQTT] connected", "broker", opts.BrokerURL())
		})

	client := mqtt.NewClient(co)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("publish: connect %s: %w", opts.BrokerURL(), err)
	}
	return NewMQTTPublisher(client, opts.Topic, opts.QoS, opts.Retain), nil
}

// Publish sends the voltage to the topic and waits for the broker
// acknowledgement required by the QoS level.
func (p *MQTTPublisher) Publish(ctx context.Context, voltage float64) error {
	token := p.client.Publish(p.topic, p.qos, p.retain, FormatVoltage(voltage))
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("publish: mqtt %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing 250ms for in-flight work.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	if token == nil {
		return errors.New("nil token")
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
