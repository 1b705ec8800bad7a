// Package publish mirrors snapshots to an MQTT broker.
//
// Each new snapshot's raw JSON is published as a retained message on
// <prefix>/<source>, so a display that connects late still receives the
// latest document for every source.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jpalmerr/marquee/internal/store"
)

const (
	defaultTopicPrefix = "marquee"
	defaultClientID    = "marquee"
	publishTimeout     = 5 * time.Second
	connectPoll        = 200 * time.Millisecond
)

// Config describes the broker connection.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string

	// TopicPrefix is prepended to each source name. Defaults to "marquee".
	TopicPrefix string

	// ClientID defaults to "marquee".
	ClientID string

	// QoS is the MQTT quality of service for publishes (0, 1 or 2).
	QoS byte
}

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher forwards store updates to MQTT.
type Publisher struct {
	client client
	prefix string
	qos    byte
	logger *slog.Logger
}

// New creates a [Publisher] for cfg. It does not connect.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newPublisher(mqtt.NewClient(opts), cfg.TopicPrefix, cfg.QoS, logger), nil
}

func newPublisher(c client, prefix string, qos byte, logger *slog.Logger) *Publisher {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &Publisher{
		client: c,
		prefix: prefix,
		qos:    qos,
		logger: logger,
	}
}

// Topic returns the topic snapshots of source are published on.
func (p *Publisher) Topic(source string) string {
	return p.prefix + "/" + source
}

// Connect waits for the initial broker connection or ctx.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends snap as a retained message on its source topic.
func (p *Publisher) Publish(snap store.Snapshot) error {
	topic := p.Topic(snap.Source)
	token := p.client.Publish(topic, p.qos, true, snap.Raw)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run publishes every snapshot currently in st, then every update, until ctx
// is done. Snapshots whose body did not change since the last publish on
// their topic are skipped.
func (p *Publisher) Run(ctx context.Context, st store.Store) {
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	sent := make(map[string]uint64)
	send := func(snap store.Snapshot) {
		if sum, ok := sent[snap.Source]; ok && sum == snap.Checksum {
			return
		}
		if err := p.Publish(snap); err != nil {
			p.logger.Warn("mqtt publish failed", "source", snap.Source, "error", err)
			return
		}
		sent[snap.Source] = snap.Checksum
		p.logger.Debug("published snapshot", "topic", p.Topic(snap.Source), "bytes", len(snap.Raw))
	}

	for _, snap := range st.GetAll() {
		send(snap)
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			send(snap)
		case <-ctx.Done():
			return
		}
	}
}

// Close disconnects from the broker, allowing 250ms for in-flight publishes.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
	p.logger.Info("mqtt disconnected")
}
