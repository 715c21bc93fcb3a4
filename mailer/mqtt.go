package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultOutboxTopic    = "hms/auth/outbox/email"
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 60 * time.Second
	maxQoS                = 2
)

// MQTTConfig configures the outbox broker connection.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
}

// Publisher is the subset of a paho client the outbox needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTOutbox hands messages to a delivery worker by publishing them to an
// MQTT topic. The worker owns the SMTP side.
type MQTTOutbox struct {
	pub    Publisher
	client pahomqtt.Client
	topic  string
	qos    byte
	now    func() time.Time
}

type outboxEnvelope struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html,omitempty"`
	Text     string    `json:"text,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

// NewMQTTOutbox publishes through pub.
func NewMQTTOutbox(pub Publisher, topic string, qos byte) *MQTTOutbox {
	if topic == "" {
		topic = defaultOutboxTopic
	}
	if qos > maxQoS {
		qos = 1
	}
	return &MQTTOutbox{pub: pub, topic: topic, qos: qos, now: time.Now}
}

// ConnectMQTTOutbox dials the broker described by cfg with auto-reconnect
// and returns an outbox bound to it.
func ConnectMQTTOutbox(cfg MQTTConfig) (*MQTTOutbox, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: mqtt connect timeout after %v", ErrDispatchFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	o := NewMQTTOutbox(client, cfg.Topic, cfg.QoS)
	o.client = client
	return o, nil
}

// Send publishes msg and waits for the broker acknowledgement or ctx.
func (o *MQTTOutbox) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	env := outboxEnvelope{
		ID:       NewMessageID(),
		To:       msg.To,
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		QueuedAt: o.now().UTC(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	token := o.pub.Publish(o.topic, o.qos, false, payload)
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, ctx.Err())
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	return env.ID, nil
}

// Close disconnects a client opened by ConnectMQTTOutbox.
func (o *MQTTOutbox) Close() {
	if o.client != nil {
		o.client.Disconnect(250)
	}
}
