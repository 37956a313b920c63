package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudvault/cloudvault-cli/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventError EventType = "error"

	// Session lifecycle
	EventSessionChanged EventType = "session_changed" // State transition (login, logout, validation)
	EventQuotaChanged   EventType = "quota_changed"   // Storage quota reported by the server

	// Upload tasks
	EventUploadQueued    EventType = "upload_queued"    // Task created in pending state
	EventUploadStarted   EventType = "upload_started"   // Request sent
	EventUploadCompleted EventType = "upload_completed" // Server accepted the file
	EventUploadFailed    EventType = "upload_failed"    // Request failed
	EventBatchComplete   EventType = "batch_complete"   // Every task in a batch is terminal
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// ErrorEvent represents error conditions surfaced to the view layer
type ErrorEvent struct {
	BaseEvent
	Operation string
	Error     error
	AuthError bool // true when the error forced a logout
}

// SessionChangedEvent is published on every session state transition.
// Subscribers owning user-scoped caches clear them when Authenticated is false.
type SessionChangedEvent struct {
	BaseEvent
	OldState      string
	NewState      string
	Authenticated bool
	Email         string
	Reason        string // "login", "signup", "bootstrap", "logout", "validation_failed", "auth_error"
	Generation    uint64
}

// QuotaChangedEvent carries the latest storage quota.
type QuotaChangedEvent struct {
	BaseEvent
	Used  int64
	Limit int64
}

// UploadEvent represents a single upload task transition
type UploadEvent struct {
	BaseEvent
	TaskID   string
	BatchID  string
	Filename string
	Size     int64
	Status   string
	Error    error
	Duration time.Duration // time spent uploading, set on completion and failure
}

// BatchCompleteEvent summarises a finished batch
type BatchCompleteEvent struct {
	BaseEvent
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishError is a convenience method for publishing error events
func (eb *EventBus) PublishError(operation string, err error, authError bool) {
	eb.Publish(&ErrorEvent{
		BaseEvent: NewBase(EventError),
		Operation: operation,
		Error:     err,
		AuthError: authError,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
