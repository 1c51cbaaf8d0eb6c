package events

import (
	"testing"
	"time"
)

func TestTypedEvent_EntityCreated(t *testing.T) {
	payload := EntityCreatedPayload{Entity: EntityRef{ID: 3, Kind: "subtask", Title: "Invites", EpicID: 1}}
	evt := NewTypedEvent(SourceTracker, payload)

	if evt.Type != EventEntityCreated {
		t.Fatalf("expected type %q, got %q", EventEntityCreated, evt.Type)
	}
	got, ok := ExtractPayload[EntityCreatedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Entity.ID != 3 || got.Entity.EpicID != 1 {
		t.Fatalf("expected entity 3 of epic 1, got %+v", got.Entity)
	}
}

func TestTypedEvent_EntityDeletedCascade(t *testing.T) {
	evt := NewTypedEvent(SourceTracker, EntityDeletedPayload{
		Entity:  EntityRef{ID: 4, Kind: "subtask"},
		Cascade: true,
	})

	got, ok := ExtractPayload[EntityDeletedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if !got.Cascade {
		t.Fatal("expected cascade flag")
	}
}

func TestTypedEvent_EpicStatusChanged(t *testing.T) {
	evt := NewTypedEventWithRun(SourceTracker, EpicStatusChangedPayload{
		EpicID: 1, From: "new", To: "in_progress", Subtasks: 2,
	}, "run_abc")

	if evt.RunID != "run_abc" {
		t.Fatalf("expected run id run_abc, got %q", evt.RunID)
	}
	got, ok := ExtractPayload[EpicStatusChangedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.From != "new" || got.To != "in_progress" {
		t.Fatalf("unexpected transition %s -> %s", got.From, got.To)
	}
}

func TestTypedEvent_RunCompleted(t *testing.T) {
	evt := NewTypedEvent(SourceScript, RunCompletedPayload{
		Name: "birthday", Steps: 5, Failed: 1, Duration: 2 * time.Second, Error: "boom",
	})

	if evt.Type != EventRunCompleted {
		t.Fatalf("expected type %q, got %q", EventRunCompleted, evt.Type)
	}
	got, ok := ExtractPayload[RunCompletedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Duration != 2*time.Second {
		t.Fatalf("expected duration 2s, got %v", got.Duration)
	}
	if got.Failed != 1 || got.Error != "boom" {
		t.Fatalf("unexpected payload %+v", got)
	}
}
