package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// ENTITY EVENTS
// =============================================================================

// EntityRef identifies the entity an event refers to.
type EntityRef struct {
	ID     int    `json:"id"`
	Kind   string `json:"kind"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
	EpicID int    `json:"epic_id,omitempty"`
}

type EntityCreatedPayload struct {
	Entity EntityRef `json:"entity"`
}

func (EntityCreatedPayload) EventType() EventType { return EventEntityCreated }

type EntityUpdatedPayload struct {
	Entity EntityRef `json:"entity"`
}

func (EntityUpdatedPayload) EventType() EventType { return EventEntityUpdated }

type EntityDeletedPayload struct {
	Entity  EntityRef `json:"entity"`
	Cascade bool      `json:"cascade,omitempty"` // removed as part of an epic delete
}

func (EntityDeletedPayload) EventType() EventType { return EventEntityDeleted }

type EntityViewedPayload struct {
	Entity EntityRef `json:"entity"`
}

func (EntityViewedPayload) EventType() EventType { return EventEntityViewed }

// =============================================================================
// DERIVATION EVENTS
// =============================================================================

type EpicStatusChangedPayload struct {
	EpicID   int    `json:"epic_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subtasks int    `json:"subtasks"`
}

func (EpicStatusChangedPayload) EventType() EventType { return EventEpicStatusChanged }

// =============================================================================
// RUN EVENTS
// =============================================================================

type RunStartedPayload struct {
	Name  string `json:"name"`
	Steps int    `json:"steps,omitempty"`
}

func (RunStartedPayload) EventType() EventType { return EventRunStarted }

type RunCompletedPayload struct {
	Name     string        `json:"name"`
	Steps    int           `json:"steps"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func (RunCompletedPayload) EventType() EventType { return EventRunCompleted }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

// NewTypedEvent creates an event from a typed payload.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return NewEvent(payload.EventType(), source, toMap(payload))
}

// NewTypedEventWithRun creates an event from a typed payload, tagged with a
// run id.
func NewTypedEventWithRun(source EventSource, payload EventPayload, runID string) Event {
	return NewEventWithRun(payload.EventType(), source, toMap(payload), runID)
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
