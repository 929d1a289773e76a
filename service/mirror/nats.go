package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the JetStream stream for relay events.
	StreamName = "RELAY_EVENTS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "relay.*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// Subject returns the JetStream subject for an event, "relay.{kind}".
func Subject(event *Event) string {
	return fmt.Sprintf("relay.%s", event.Kind)
}

// NATSMirror publishes relay events to NATS JetStream.
type NATSMirror struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewNATSMirror connects to NATS and ensures the stream exists.
func NewNATSMirror(natsURL string, logger *slog.Logger) (*NATSMirror, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("luxabot-mirror"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	m := &NATSMirror{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := m.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS mirror initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return m, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (m *NATSMirror) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := m.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			m.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	m.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Relayed Solana webhook events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

func (m *NATSMirror) Name() string { return "nats" }

// Publish publishes one event to "relay.{kind}".
func (m *NATSMirror) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}

	// Msg ID lets JetStream drop a duplicate publish of the same relay event.
	if _, err := m.js.Publish(ctx, Subject(event), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish relay event: %w", err)
	}
	return nil
}

// Close closes the connection to NATS.
func (m *NATSMirror) Close() error {
	if m.nc != nil {
		m.nc.Close()
		m.logger.Info("NATS mirror closed")
	}
	return nil
}
