package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor normalizes like the real relay and records what it saw.
type fakeProcessor struct {
	mu       sync.Mutex
	payloads []any
	panicMsg string
}

func (p *fakeProcessor) Process(ctx context.Context, payload any) normalize.Event {
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
	return normalize.Normalize(payload)
}

func (p *fakeProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func newTestServer(p Processor, m *metrics.Metrics, logs io.Writer) http.Handler {
	if logs == nil {
		logs = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(":0", p, 1024, 10*time.Second, m, logger).Handler()
}

func postWebhook(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleWebhook_AlwaysReceived(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"legacy transaction", `{"transaction":{"signature":"abc123"}}`},
		{"nft sale", `[{"events":{"nft":{"signature":"sig1","nfts":[{"mint":"mintX"}],"amount":2500000000}}}]`},
		{"empty transactions", `{"transactions":[]}`},
		{"unknown object", `{"foo":"bar"}`},
		{"empty array", `[]`},
		{"scalar", `42`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{}
			h := newTestServer(p, nil, nil)

			rec := postWebhook(h, tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, statusResponse{Status: "received"}, decodeStatus(t, rec))
			assert.Equal(t, 1, p.calls())
		})
	}
}

func TestHandleWebhook_MalformedJSON(t *testing.T) {
	for _, body := range []string{"not valid json", `{"transaction":`, "", `{} trailing`} {
		t.Run(body, func(t *testing.T) {
			p := &fakeProcessor{}
			h := newTestServer(p, nil, nil)

			rec := postWebhook(h, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeStatus(t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Error, "invalid request body")
			assert.Zero(t, p.calls(), "malformed payloads must not reach the relay")
		})
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	p := &fakeProcessor{}
	h := newTestServer(p, nil, nil)

	rec := postWebhook(h, `{"transaction":{"signature":"`+strings.Repeat("A", 2048)+`"}}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeStatus(t, rec).Error, "request body too large")
	assert.Zero(t, p.calls())
}

func TestHandleWebhook_PanicReturns500(t *testing.T) {
	var logs bytes.Buffer
	h := newTestServer(&fakeProcessor{panicMsg: "boom"}, nil, &logs)

	rec := postWebhook(h, `{"transaction":{"signature":"abc123"}}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, statusResponse{Status: "error"}, decodeStatus(t, rec))
	assert.Contains(t, logs.String(), "panic while processing request")
	assert.Contains(t, logs.String(), "boom")
}

func TestRecoverMiddleware_PanicAfterResponseKeepsResponse(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := recoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, statusResponse{Status: "received"}, http.StatusOK)
		panic("late failure")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusResponse{Status: "received"}, decodeStatus(t, rec))
	assert.NotContains(t, rec.Body.String(), `"error"`)
	assert.Contains(t, logs.String(), "late failure")
	assert.Contains(t, logs.String(), `"response_started":true`)
}

func TestRecoverMiddleware_PanicBeforeResponse(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := recoverMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Partial", "1")
		panic("early failure")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, statusResponse{Status: "error"}, decodeStatus(t, rec))
}

func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeProcessor{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLiveness(t *testing.T) {
	h := newTestServer(&fakeProcessor{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, livenessMessage, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeProcessor{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h := newTestServer(&fakeProcessor{}, nil, nil)

	rec := postWebhook(h, `{}`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.Header.Set(requestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(requestIDHeader))
}

func TestMetricsRouting(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	h := newTestServer(&fakeProcessor{panicMsg: "boom"}, m, nil)

	postWebhook(h, `{}`)

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{handler="/webhook",method="POST",status="5xx"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsDisabled(t *testing.T) {
	h := newTestServer(&fakeProcessor{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteTimeoutCoversProcessingBudget(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	assert.Equal(t, 15*time.Second, New(":0", &fakeProcessor{}, 0, 5*time.Second+2*time.Second, nil, logger).writeTimeout())
	// 30s alert timeout plus 30s mirror timeout.
	assert.Equal(t, 65*time.Second, New(":0", &fakeProcessor{}, 0, 60*time.Second, nil, logger).writeTimeout())
}
