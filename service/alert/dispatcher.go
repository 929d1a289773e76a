package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/normalize"
	"golang.org/x/time/rate"
)

// ErrNoWebhookURL is returned by Send when no delivery URL is configured.
var ErrNoWebhookURL = errors.New("discord webhook url is not configured")

// maxLoggedBody caps how much of the delivery response body is read and logged.
const maxLoggedBody = 4 << 10

// Config configures a Dispatcher.
type Config struct {
	WebhookURL string
	Timeout    time.Duration

	// RatePerMinute limits outbound deliveries; 0 disables the limiter.
	RatePerMinute int
	Burst         int
}

// Delivery is the outcome of one delivery attempt.
type Delivery struct {
	StatusCode int
	Body       string
}

// Dispatcher formats events and delivers them to the Discord webhook.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	cfg        Config
	formatter  *Formatter
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil httpClient gets one with cfg.Timeout.
func NewDispatcher(cfg Config, formatter *Formatter, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if formatter == nil {
		formatter = &Formatter{}
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), burst)
	}

	return &Dispatcher{
		cfg:        cfg,
		formatter:  formatter,
		httpClient: httpClient,
		limiter:    limiter,
		metrics:    m,
		logger:     logger,
	}
}

// Dispatch formats ev and makes a single delivery attempt. Failures are logged
// and swallowed; the caller's outcome never depends on delivery.
// The attempt is detached from ctx cancellation and bounded by the configured timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, ev normalize.Event) {
	kind := ev.Kind()
	if !ev.HasSignature() {
		d.metrics.RecordAlertDispatch(kind, "skipped", 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	status := "error"
	defer metrics.Timer(start, func(seconds float64) {
		d.metrics.RecordAlertDispatch(kind, status, seconds)
	})()

	msg := d.formatter.Format(ev)

	d.logger.InfoContext(ctx, "sending discord alert",
		"signature", ev.Signature,
		"kind", kind,
		"explorer_url", d.formatter.ExplorerLink(ev.Signature),
	)

	delivery, err := d.Send(ctx, msg)
	if err != nil {
		attrs := []any{"signature", ev.Signature, "kind", kind, "error", err}
		if delivery != nil {
			attrs = append(attrs, "status_code", delivery.StatusCode, "response_body", delivery.Body)
		}
		d.logger.ErrorContext(ctx, "failed to send discord alert", attrs...)
		return
	}

	status = "success"
	d.logger.InfoContext(ctx, "discord alert delivered",
		"signature", ev.Signature,
		"kind", kind,
		"status_code", delivery.StatusCode,
		"response_body", delivery.Body,
		"duration_seconds", time.Since(start).Seconds(),
	)
}

// Send posts msg to the webhook once. A non-2xx status is returned as an error
// together with the Delivery so the caller can log the response.
func (d *Dispatcher) Send(ctx context.Context, msg *Message) (*Delivery, error) {
	if d.cfg.WebhookURL == "" {
		return nil, ErrNoWebhookURL
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "luxabot/v1")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	delivery := &Delivery{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return delivery, fmt.Errorf("discord returned status %d", resp.StatusCode)
	}

	return delivery, nil
}
