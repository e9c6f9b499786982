// Package mqtt broadcasts display status changes and control acks to
// dashboards over an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

const (
	qos             = 1
	disconnectQuiet = 250 // ms
	publishTimeout  = 5 * time.Second
)

func StatusTopic(displayID string) string {
	return fmt.Sprintf("displays/%s/status", displayID)
}

func ControlTopic(displayID string) string {
	return fmt.Sprintf("displays/%s/control", displayID)
}

var connectHandler paho.OnConnectHandler = func(paho.Client) {
	log.Info().Msg("connected to MQTT broker")
}

var connectLostHandler paho.ConnectionLostHandler = func(_ paho.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// Connect dials the broker. The client reconnects on its own after a lost
// connection.
func Connect(brokerURL, clientID, username, password string) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// StatusMessage is the payload published on a display's status topic.
type StatusMessage struct {
	DisplayID string       `json:"displayId"`
	Update    StatusChange `json:"update"`
	Timestamp time.Time    `json:"timestamp"`
}

type StatusChange struct {
	Status   model.DisplayStatus `json:"status"`
	LastSeen *time.Time          `json:"lastSeen"`
}

// ControlAck is published after a control command was accepted by VNNOX.
type ControlAck struct {
	DisplayID string    `json:"displayId"`
	Command   string    `json:"command"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher struct {
	client paho.Client
	now    func() time.Time
}

func NewPublisher(client paho.Client) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

func (p *Publisher) PublishDisplayUpdate(ctx context.Context, u model.StatusUpdate) error {
	msg := StatusMessage{
		DisplayID: u.DisplayID,
		Update:    StatusChange{Status: u.Status, LastSeen: u.LastSeen},
		Timestamp: p.now().UTC(),
	}
	return p.publish(ctx, StatusTopic(u.DisplayID), msg)
}

func (p *Publisher) PublishControlAck(ctx context.Context, displayID, command string, value any) error {
	ack := ControlAck{DisplayID: displayID, Command: command, Value: value, Timestamp: p.now().UTC()}
	return p.publish(ctx, ControlTopic(displayID), ack)
}

func (p *Publisher) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to publish MQTT message")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Msg("MQTT message published")
	return nil
}

func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiet)
		log.Info().Msg("MQTT client disconnected")
	}
}
