package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
)

const (
	livenessMessage = "LuxaBot webhook listener is running"
	requestIDHeader = "X-Request-ID"
)

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleWebhook returns a handler that relays an inbound transaction notification.
// POST /webhook
//
// The response is written only after the relay (including the outbound alert)
// has finished. Anything the payload does or does not contain yields 200.
func handleWebhook(processor Processor, maxBodyBytes int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get(requestIDHeader)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				logger.Warn("webhook body too large", "request_id", requestID, "limit", maxErr.Limit)
				writeError(w, fmt.Sprintf("request body too large: maximum size is %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
				return
			}
			logger.Warn("failed to read webhook body", "request_id", requestID, "error", err)
			writeError(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			logger.Warn("rejected malformed webhook payload", "request_id", requestID, "error", err, "size", len(body))
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		logger.Debug("incoming webhook payload", "request_id", requestID, "size", len(body))

		ev := processor.Process(r.Context(), payload)

		logger.Info("webhook processed",
			"request_id", requestID,
			"shape", ev.Shape,
			"signature", ev.Signature,
		)
		writeJSON(w, statusResponse{Status: "received"}, http.StatusOK)
	})
}

// handleLiveness returns a static plain-text string for uptime checks.
// GET /
func handleLiveness() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, livenessMessage)
	})
}

// recoverMiddleware turns a panic in next into a 500 {"status":"error"} response.
// If next already started the response, the panic is only logged.
func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			w := &trackingWriter{ResponseWriter: rw}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic while processing request",
					"request_id", w.Header().Get(requestIDHeader),
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
					"response_started", w.started,
				)
				if !w.started {
					writeJSON(w, statusResponse{Status: "error"}, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// trackingWriter records whether the response header has been sent.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.started = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requestIDMiddleware echoes the caller's X-Request-ID, or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusResponse{Status: "error", Error: message}, statusCode)
}
