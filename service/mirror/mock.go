package mirror

import (
	"context"
	"sync"
	"time"
)

// MockMirror is a mock implementation of Mirror for testing.
type MockMirror struct {
	mu              sync.RWMutex
	name            string
	publishedEvents []*Event
	publishError    error
	publishDelay    time.Duration
	closed          bool
}

// NewMockMirror creates a new mock mirror for testing.
func NewMockMirror(name string) *MockMirror {
	return &MockMirror{
		name:            name,
		publishedEvents: make([]*Event, 0),
	}
}

func (m *MockMirror) Name() string { return m.name }

// Publish records the event and returns any configured error. With a delay
// set it first waits, returning ctx.Err() if ctx ends sooner.
func (m *MockMirror) Publish(ctx context.Context, event *Event) error {
	m.mu.RLock()
	delay := m.publishDelay
	m.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the mirror as closed.
func (m *MockMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockMirror) GetPublishedEvents() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*Event, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// SetPublishError configures the mock to return an error on Publish.
func (m *MockMirror) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// SetPublishDelay makes Publish wait for d before recording the event.
func (m *MockMirror) SetPublishDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishDelay = d
}

// IsClosed returns whether the mirror has been closed.
func (m *MockMirror) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
