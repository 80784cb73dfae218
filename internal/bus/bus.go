// Package bus provides non-blocking fan-out of appliance events to
// subscribers. Publishing never blocks: if a subscriber's channel is full
// the event is dropped for that subscriber. The bus carries UI/bot push
// notifications only and must never be used for control decisions.
package bus

import (
	"errors"
	"sync"
	"time"
)

// Severity tags an event for human-facing display.
type Severity string

const (
	// SeverityInfo marks routine state changes.
	SeverityInfo Severity = "info"
	// SeveritySuccess marks completed operations.
	SeveritySuccess Severity = "success"
	// SeverityWarning marks recoverable degradations.
	SeverityWarning Severity = "warning"
	// SeverityDanger marks failures and alarms.
	SeverityDanger Severity = "danger"
)

// Event names published by the appliance.
const (
	EventMotion            = "motion"
	EventAlarmTriggered    = "alarm_triggered"
	EventRecordingStarted  = "recording_started"
	EventRecordingFinished = "recording_finished"
	EventRecordingFailed   = "recording_failed"
	EventAcquisitionFailed = "acquisition_failed"
	EventNotifySent        = "notify_sent"
	EventNotifyFailed      = "notify_failed"
	EventMotionToggled     = "motion_toggled"
)

// Event is a single fire-and-forget announcement.
type Event struct {
	// Name identifies the kind of event, e.g. "recording_started".
	Name string
	// Severity tags the event for display.
	Severity Severity
	// Message is a human-readable description.
	Message string
	// Payload carries optional structured data for subscribers.
	Payload map[string]any
	// Timestamp is when the event was published.
	Timestamp time.Time
}

var (
	// ErrSubscriberExists is returned when Subscribe reuses an id.
	ErrSubscriberExists = errors.New("subscriber id already exists")
	// ErrSubscriberNotFound is returned when Unsubscribe gets an unknown id.
	ErrSubscriberNotFound = errors.New("subscriber id not found")
	// ErrBusClosed is returned for operations on a closed bus.
	ErrBusClosed = errors.New("bus is closed")
)

// Stats is a snapshot of bus delivery counters.
type Stats struct {
	// Published is the number of Publish calls.
	Published uint64
	// Sent is the total events delivered across all subscribers.
	Sent uint64
	// Dropped is the total events dropped because a subscriber was full.
	Dropped uint64
}

// Bus fans events out to subscriber channels with a drop policy.
// All methods are safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan<- Event
	stats       Stats
	closed      bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan<- Event),
	}
}

// Subscribe registers a channel to receive events under the given id.
// The channel's buffer bounds how far the subscriber may lag before
// events are dropped for it.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if _, ok := b.subscribers[id]; ok {
		return ErrSubscriberExists
	}

	b.subscribers[id] = ch

	return nil
}

// Unsubscribe removes a subscriber. The caller owns the channel and is
// responsible for draining or closing it afterwards.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if _, ok := b.subscribers[id]; !ok {
		return ErrSubscriberNotFound
	}

	delete(b.subscribers, id)

	return nil
}

// Publish delivers the event to every subscriber without blocking.
// Events for full subscribers are dropped. Publishing on a closed bus is
// a no-op.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.stats.Published++

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			b.stats.Sent++
		default:
			b.stats.Dropped++
		}
	}
}

// Stats returns a snapshot of delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.stats
}

// Close stops the bus. Subsequent Subscribe/Unsubscribe return ErrBusClosed
// and Publish becomes a no-op. Subscriber channels are not closed; their
// owners close them.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.closed = true
	b.subscribers = nil

	return nil
}
