// Package diagnostics keeps a bounded, exportable trail of upload pipeline events.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of events retained before the oldest is evicted.
const DefaultCapacity = 50

const exportTimeLayout = "20060102T150405Z"

// Event is one forensic log line.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Context   string    `json:"context"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// Document is an exported, downloadable snapshot of the log.
type Document struct {
	Filename string
	Body     []byte
}

type exportBody struct {
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Events     []Event   `json:"events"`
}

// Log is a fixed-capacity FIFO of events. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	nowFunc  func() time.Time
	logger   *zap.Logger
}

// Option customizes a Log.
type Option func(*Log)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.nowFunc = now }
}

// WithLogger mirrors every appended event to the given logger at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New constructs a Log holding at most capacity events. Non-positive values use DefaultCapacity.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		capacity: capacity,
		events:   make([]Event, 0, capacity),
		nowFunc:  time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records an event, evicting the oldest one when the log is full.
func (l *Log) Append(context, message string, data any) {
	event := Event{
		Timestamp: l.nowFunc().UTC(),
		Context:   context,
		Message:   message,
		Data:      data,
	}

	l.mu.Lock()
	if len(l.events) == l.capacity {
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
	}
	l.events = append(l.events, event)
	l.mu.Unlock()

	l.logger.Debug("diagnostic event",
		zap.String("context", context),
		zap.String("message", message),
		zap.Any("data", data),
	)
}

// Clear drops every retained event.
func (l *Log) Clear() {
	l.mu.Lock()
	l.events = l.events[:0]
	l.mu.Unlock()
}

// List returns a point-in-time copy of the retained events, oldest first.
func (l *Log) List() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Export serializes the retained events into a JSON document named with a sortable timestamp.
func (l *Log) Export() (Document, error) {
	now := l.nowFunc().UTC()
	events := l.List()

	body, err := json.MarshalIndent(exportBody{
		ExportedAt: now,
		Count:      len(events),
		Events:     events,
	}, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("encode diagnostics: %w", err)
	}

	return Document{
		Filename: ExportFilename(now),
		Body:     body,
	}, nil
}

// ExportFilename names an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("diagnostics-%s.json", t.UTC().Format(exportTimeLayout))
}
