// Package events provides an in-memory event bus using Go channels. The
// tracker publishes entity changes on it; the audit logger and the CLI
// subscribe.
package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
)

// EventType represents the type of event.
type EventType string

const (
	// Entity lifecycle
	EventEntityCreated EventType = "entity.created"
	EventEntityUpdated EventType = "entity.updated"
	EventEntityDeleted EventType = "entity.deleted"
	EventEntityViewed  EventType = "entity.viewed"

	// Derivation
	EventEpicStatusChanged EventType = "epic.status.changed"

	// Script runs and shell sessions
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceTracker EventSource = "tracker"
	SourceScript  EventSource = "script"
	SourceShell   EventSource = "shell"
)

// Event represents an event in the system.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// eventIDCounter is used to generate sequential event IDs.
var eventIDCounter uint64

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

// NewEventWithRun creates a new event tagged with a run id.
func NewEventWithRun(eventType EventType, source EventSource, payload map[string]any, runID string) Event {
	return Event{
		ID:        generateEventID(),
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

func generateEventID() string {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq)
}

// Subscriber is a function that receives events. Handlers run on the bus
// dispatch goroutine and must not block or publish with PublishAsync.
type Subscriber func(Event)

type subscription struct {
	id         int
	eventTypes []EventType
	handler    Subscriber
}

// Bus is an in-memory event bus using Go channels. Every subscriber sees
// events in the order they were published.
type Bus struct {
	mu        sync.RWMutex // guards closed and sends on eventChan
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	eventChan chan Event
	stopped   chan struct{}

	subMu       sync.RWMutex
	subscribers map[int]*subscription
	nextID      int

	ringBuffer *RingBuffer
}

// NewBus creates a new event bus.
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		subscribers: make(map[int]*subscription),
		eventChan:   make(chan Event, bufferSize),
		ringBuffer:  NewRingBuffer(bufferSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.stopped)
	for event := range b.eventChan {
		b.ringBuffer.Add(event)
		b.notifySubscribers(event)
	}
}

// notifySubscribers calls the matching handlers one after another, in
// subscription order.
func (b *Bus) notifySubscribers(event Event) {
	b.subMu.RLock()
	matched := make([]*subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if b.matches(sub, event) {
			matched = append(matched, sub)
		}
	}
	b.subMu.RUnlock()

	slices.SortFunc(matched, func(x, y *subscription) int { return x.id - y.id })
	for _, sub := range matched {
		sub.handler(event)
	}
}

func (b *Bus) matches(sub *subscription, event Event) bool {
	if len(sub.eventTypes) == 0 {
		return true
	}
	return slices.Contains(sub.eventTypes, event.Type)
}

// Publish sends an event to the bus. The event is dropped when the queue is
// full or the bus is closed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
	}
}

// PublishAsync waits for room in the queue. It returns ErrBusClosed when the
// bus is closed before the event is queued.
func (b *Bus) PublishAsync(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.eventChan <- event:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for specific event types.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	id := b.nextID
	b.nextID++

	b.subscribers[id] = &subscription{
		id:         id,
		eventTypes: eventTypes,
		handler:    handler,
	}

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		delete(b.subscribers, id)
	}
}

// History returns up to limit recent events, oldest first.
func (b *Bus) History(limit int) []Event {
	return b.ringBuffer.Get(limit)
}

// Close shuts down the event bus. Publishers still waiting in PublishAsync
// get ErrBusClosed. Events already queued are delivered before Close returns.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		b.closed = true
		close(b.eventChan)
		b.mu.Unlock()
	})
	<-b.stopped
}

// RingBuffer is a circular buffer for storing recent events.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	size   int
	pos    int
	count  int
}

// NewRingBuffer creates a new ring buffer holding at least one event.
func NewRingBuffer(size int) *RingBuffer {
	size = max(size, 1)
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

func (r *RingBuffer) Add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.pos] = event
	r.pos = (r.pos + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *RingBuffer) Get(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}

	result := make([]Event, n)
	start := (r.pos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		result[i] = r.events[(start+i)%r.size]
	}
	return result
}
