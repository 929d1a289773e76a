// Package mirror publishes relayed events to optional side channels
// (NATS JetStream, Redis, Kafka) next to the Discord alert.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/normalize"
)

// Event is the JSON document published to every mirror.
type Event struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"` // "nft_sale" or "transaction"
	Shape       string   `json:"shape"`
	Signature   string   `json:"signature"`
	ExplorerURL string   `json:"explorer_url"`
	Mint        string   `json:"mint,omitempty"`
	PriceSOL    *float64 `json:"price_sol,omitempty"`
	Buyer       string   `json:"buyer,omitempty"`
	Seller      string   `json:"seller,omitempty"`
	Marketplace string   `json:"marketplace,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// FromExtracted converts a normalized event into a mirror Event.
func FromExtracted(id string, ev normalize.Event, explorerURL string, receivedAt time.Time) *Event {
	return &Event{
		ID:          id,
		Kind:        ev.Kind(),
		Shape:       string(ev.Shape),
		Signature:   ev.Signature,
		ExplorerURL: explorerURL,
		Mint:        ev.Mint,
		PriceSOL:    ev.PriceSOL,
		Buyer:       ev.Buyer,
		Seller:      ev.Seller,
		Marketplace: ev.Marketplace,
		ReceivedAt:  receivedAt.UTC(),
	}
}

// Mirror is a best-effort sink for relay events.
type Mirror interface {
	// Name identifies the mirror in logs and metrics.
	Name() string

	// Publish sends one event.
	Publish(ctx context.Context, event *Event) error

	// Close releases the underlying connection.
	Close() error
}

// Fanout publishes each event to every mirror in turn. One mirror failing
// does not stop the others.
type Fanout struct {
	mirrors []Mirror
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFanout creates a Fanout over mirrors. It may be empty.
func NewFanout(mirrors []Mirror, m *metrics.Metrics, logger *slog.Logger) *Fanout {
	return &Fanout{
		mirrors: mirrors,
		metrics: m,
		logger:  logger,
	}
}

// Len returns the number of configured mirrors.
func (f *Fanout) Len() int {
	return len(f.mirrors)
}

// Publish sends event to all mirrors and returns the joined errors.
func (f *Fanout) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, m := range f.mirrors {
		err := f.publishOne(ctx, m, event)
		if err != nil {
			f.logger.ErrorContext(ctx, "failed to publish relay event",
				"mirror", m.Name(),
				"signature", event.Signature,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
			continue
		}
		f.logger.DebugContext(ctx, "published relay event",
			"mirror", m.Name(),
			"signature", event.Signature,
		)
	}
	return errors.Join(errs...)
}

func (f *Fanout) publishOne(ctx context.Context, m Mirror, event *Event) (err error) {
	defer metrics.Timer(time.Now(), func(seconds float64) {
		f.metrics.RecordMirrorPublish(m.Name(), err, seconds)
	})()
	return m.Publish(ctx, event)
}

// Close closes every mirror and returns the joined errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, m := range f.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}
