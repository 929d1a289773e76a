package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/mirror"
	"github.com/brojonat/luxabot/service/normalize"
	"github.com/google/uuid"
)

// Dispatcher delivers an alert for an extracted event. Implementations must
// swallow delivery failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev normalize.Event)
}

// Publisher mirrors relayed events to side channels.
type Publisher interface {
	Publish(ctx context.Context, event *mirror.Event) error
}

// DefaultMirrorTimeout bounds mirror publishing when New is given no timeout.
const DefaultMirrorTimeout = 2 * time.Second

// LinkFunc returns the explorer URL for a signature.
type LinkFunc func(signature string) string

// Relay runs the per-request pipeline: normalize, dispatch, mirror.
// It keeps no state between calls.
type Relay struct {
	dispatcher    Dispatcher
	publisher     Publisher
	link          LinkFunc
	mirrorTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a Relay. publisher and link may be nil. mirrorTimeout bounds
// one event's publish to all mirrors; zero means DefaultMirrorTimeout.
func New(dispatcher Dispatcher, publisher Publisher, link LinkFunc, mirrorTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if mirrorTimeout <= 0 {
		mirrorTimeout = DefaultMirrorTimeout
	}
	return &Relay{
		dispatcher:    dispatcher,
		publisher:     publisher,
		link:          link,
		mirrorTimeout: mirrorTimeout,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Process extracts an event from payload and, when it carries a signature,
// dispatches one alert and publishes it to the mirrors. Every call is
// independent: the same payload twice produces two dispatches.
func (r *Relay) Process(ctx context.Context, payload any) normalize.Event {
	ev := normalize.Normalize(payload)
	r.metrics.RecordWebhookPayload(string(ev.Shape))

	if !ev.HasSignature() {
		r.logger.WarnContext(ctx, "no signature found in payload", "shape", ev.Shape)
		return ev
	}

	attrs := []any{
		"signature", ev.Signature,
		"shape", ev.Shape,
		"kind", ev.Kind(),
	}
	if err := ev.Validate(); err != nil {
		attrs = append(attrs, "signature_valid", false, "validation_error", err.Error())
	} else {
		attrs = append(attrs, "signature_valid", true)
	}
	if ev.IsNFTSale() {
		attrs = append(attrs, "mint", ev.Mint, "marketplace", ev.Marketplace)
	}
	r.logger.InfoContext(ctx, "extracted signature from payload", attrs...)

	r.dispatcher.Dispatch(ctx, ev)

	if r.publisher != nil {
		var explorerURL string
		if r.link != nil {
			explorerURL = r.link(ev.Signature)
		}
		event := mirror.FromExtracted(uuid.NewString(), ev, explorerURL, r.now())

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.mirrorTimeout)
		// Mirror errors are already logged per mirror; they never affect the response.
		_ = r.publisher.Publish(pubCtx, event)
		cancel()
	}

	return ev
}
