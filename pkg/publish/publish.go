// Package publish sends occupancy changes to an MQTT broker as JSON.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itohio/hallboard/pkg/board"
	"github.com/itohio/hallboard/pkg/config"
	"github.com/itohio/hallboard/pkg/detect"
	"github.com/itohio/hallboard/pkg/stream"
)

// Status payloads published on StatusTopic.
const (
	Online  = "online"
	Offline = "offline"
)

var ErrTimeout = errors.New("mqtt operation timed out")

// Event is the JSON payload of one occupancy change.
type Event struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	Bitmap   string    `json:"bitmap"`
	Occupied []string  `json:"occupied"`
	Placed   []string  `json:"placed,omitempty"`
	Lifted   []string  `json:"lifted,omitempty"`
	Initial  bool      `json:"initial,omitempty"`
}

// NewEvent converts a change; squares use algebraic names.
func NewEvent(c stream.Change) Event {
	return Event{
		Time:     c.Time.UTC(),
		Method:   detect.Method(c.Method).String(),
		Bitmap:   fmt.Sprintf("%016x", uint64(c.Bitmap)),
		Occupied: names(c.Bitmap),
		Placed:   names(c.Placed),
		Lifted:   names(c.Lifted),
		Initial:  c.Initial,
	}
}

func names(b board.Bitmap) []string {
	squares := b.Squares()
	result := make([]string, len(squares))
	for i, sq := range squares {
		result[i] = sq.String()
	}
	return result
}

// StatusTopic is where the online/offline status is retained.
func StatusTopic(topic string) string {
	return topic + "/status"
}

// Publisher publishes changes on one topic.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
	log     zerolog.Logger
}

// New wraps a connected client.
func New(client mqtt.Client, cfg config.MQTTConfig, log zerolog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: cfg.Timeout,
		log:     log.With().Str("topic", cfg.Topic).Logger(),
	}
}

// Connect creates a client for cfg, connects it and announces the board as
// online. The broker announces it offline when the connection is lost.
func Connect(cfg config.MQTTConfig, log zerolog.Logger) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "hallboard-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetWill(StatusTopic(cfg.Topic), Offline, 1, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("mqtt connected")
	})

	p := New(mqtt.NewClient(opts), cfg, log)

	if err := p.wait(p.client.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}
	if err := p.status(Online); err != nil {
		p.client.Disconnect(250)
		return nil, err
	}
	return p, nil
}

// Publish sends one change.
func (p *Publisher) Publish(c stream.Change) error {
	payload, err := json.Marshal(NewEvent(c))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.wait(p.client.Publish(p.topic, p.qos, p.retain, payload)); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Run publishes changes until in is closed. Failures are logged.
func (p *Publisher) Run(in <-chan stream.Change) {
	for c := range in {
		if err := p.Publish(c); err != nil {
			p.log.Error().Err(err).Msg("publish failed")
			continue
		}
		p.log.Debug().Int("occupied", c.Bitmap.Count()).Msg("published change")
	}
}

// Close announces the board offline and disconnects.
func (p *Publisher) Close() error {
	err := p.status(Offline)
	p.client.Disconnect(250)
	return err
}

func (p *Publisher) status(s string) error {
	if err := p.wait(p.client.Publish(StatusTopic(p.topic), 1, true, s)); err != nil {
		return fmt.Errorf("failed to publish status %s: %w", s, err)
	}
	return nil
}

func (p *Publisher) wait(t mqtt.Token) error {
	if p.timeout > 0 {
		if !t.WaitTimeout(p.timeout) {
			return ErrTimeout
		}
	} else {
		t.Wait()
	}
	return t.Error()
}
