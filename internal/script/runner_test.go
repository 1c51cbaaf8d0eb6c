package script

import (
	"context"
	"errors"
	"testing"

	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/tasks"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestRunBirthday(t *testing.T) {
	tr := tracker.New(nil)
	r := NewRunner(tr)

	report, err := r.Run(context.Background(), mustParse(t, birthdayYAML))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 || len(report.Results) != 8 {
		t.Errorf("report: failed=%d results=%d", report.Failed, len(report.Results))
	}

	partyID, ok := r.Ref("party")
	if !ok || partyID != 1 {
		t.Fatalf("Ref(party): got %d, %v", partyID, ok)
	}
	history := tr.History()
	if len(history) != 1 || history[0].EntityID() != partyID {
		t.Errorf("history: got %v", history)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	s := mustParse(t, `
name: broken
steps:
  - {op: create_task, ref: t, title: Task}
  - {op: expect_status, target: t, status: done}
  - {op: create_task, title: never}
`)
	tr := tracker.New(nil)
	report, err := NewRunner(tr).Run(context.Background(), s)
	if !errors.Is(err, ErrAssertion) {
		t.Fatalf("Run: got %v, want ErrAssertion", err)
	}
	if report.Failed != 1 || len(report.Results) != 2 {
		t.Errorf("report: failed=%d results=%d", report.Failed, len(report.Results))
	}
	if len(tr.Tasks()) != 1 {
		t.Errorf("steps after the failure were executed")
	}
}

func TestExecExpectError(t *testing.T) {
	tr := tracker.New(nil)
	r := NewRunner(tr)

	steps := []Step{
		{Op: OpCreateEpic, Ref: "e", Title: "Epic"},
		{Op: OpCreateSubtask, Ref: "s", Epic: "e", Title: "Sub"},
		{Op: OpCreateSubtask, Target: "e", Epic: "e", ExpectError: ExpectInvalidRelationship},
		{Op: OpCreateSubtask, Epic: "99", ExpectError: ExpectNotFound},
		{Op: OpUpdateSubtask, Target: "s", Epic: "s", ExpectError: ExpectInvalidRelationship},
		{Op: OpUpdateSubtask, Target: "42", Epic: "e", ExpectError: ExpectNotFound},
		{Op: OpUpdateEpic, Target: "e", Status: "done", ExpectError: ExpectInvalidRelationship},
		{Op: OpDeleteEpic, Target: "42", ExpectError: ExpectNotFound},
		{Op: OpGetTask, Target: "42", ExpectError: ExpectNotFound},
		{Op: OpEpicSubtasks, Target: "s", ExpectError: ExpectNotFound},
		{Op: OpExpectStatus, Target: "42", Status: "new", ExpectError: ExpectNotFound},
	}
	for i, step := range steps {
		res, err := r.Exec(step)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i+1, step.Op, err)
		}
		if step.ExpectError != "" && res.Err == nil {
			t.Errorf("step %d (%s): expected a tracker error in the result", i+1, step.Op)
		}
	}
}

func TestExecMissingExpectedError(t *testing.T) {
	r := NewRunner(tracker.New(nil))
	_, err := r.Exec(Step{Op: OpCreateTask, Title: "fine", ExpectError: ExpectNotFound})
	if err == nil {
		t.Fatal("expected failure when the expected error does not happen")
	}
}

func TestExecWrongErrorKind(t *testing.T) {
	r := NewRunner(tracker.New(nil))
	_, err := r.Exec(Step{Op: OpDeleteEpic, Target: "7", ExpectError: ExpectInvalidRelationship})
	if !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("got %v, want the underlying ErrNotFound", err)
	}
}

func TestExecUnexpectedError(t *testing.T) {
	r := NewRunner(tracker.New(nil))
	_, err := r.Exec(Step{Op: OpDeleteSubtask, Target: "3"})
	if !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestExecInvalidSteps(t *testing.T) {
	r := NewRunner(tracker.New(nil))

	for _, step := range []Step{
		{Op: OpGetTask, Target: "missing-ref"},
		{Op: OpCreateTask, Title: "x", Status: "half-done"},
		{Op: "nope"},
		{Op: OpGetEpic, Target: "ghost", ExpectError: ExpectNotFound},
	} {
		if _, err := r.Exec(step); !errors.Is(err, ErrInvalidStep) {
			t.Errorf("%+v: got %v, want ErrInvalidStep", step, err)
		}
	}
}

func TestExecUpdateKeepsUnsetFields(t *testing.T) {
	tr := tracker.New(nil)
	r := NewRunner(tr)

	if _, err := r.Exec(Step{Op: OpCreateTask, Ref: "t", Title: "Title", Description: "Keep"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Exec(Step{Op: OpUpdateTask, Target: "t", Status: "in_progress"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got := tr.Tasks()[0]
	if got.Title != "Title" || got.Description != "Keep" || got.Status != tasks.StatusInProgress {
		t.Errorf("task after update: %+v", got)
	}
	if len(tr.History()) != 0 {
		t.Error("update step recorded a view")
	}
}

func TestExecMoveSubtask(t *testing.T) {
	tr := tracker.New(nil)
	r := NewRunner(tr)

	for _, step := range []Step{
		{Op: OpCreateEpic, Ref: "a", Title: "A"},
		{Op: OpCreateEpic, Ref: "b", Title: "B"},
		{Op: OpCreateSubtask, Ref: "s", Epic: "a", Title: "S", Status: "done"},
		{Op: OpExpectStatus, Target: "a", Status: "done"},
		{Op: OpUpdateSubtask, Target: "s", Epic: "b"},
		{Op: OpExpectStatus, Target: "a", Status: "new"},
		{Op: OpExpectStatus, Target: "b", Status: "done"},
	} {
		if _, err := r.Exec(step); err != nil {
			t.Fatalf("%s: %v", step.Op, err)
		}
	}

	res, err := r.Exec(Step{Op: OpEpicSubtasks, Target: "b"})
	if err != nil {
		t.Fatalf("epic_subtasks: %v", err)
	}
	if len(res.Entities) != 1 || res.Entities[0].EntityTitle() != "S" {
		t.Errorf("epic_subtasks: got %v", res.Entities)
	}
}

func TestExecListingOps(t *testing.T) {
	tr := tracker.New(nil)
	r := NewRunner(tr)

	for _, step := range []Step{
		{Op: OpCreateTask, Ref: "t", Title: "Groceries", Description: "weekly"},
		{Op: OpCreateEpic, Ref: "e", Title: "groceries"},
		{Op: OpGetEpic, Target: "e"},
		{Op: OpGetTask, Target: "t"},
	} {
		if _, err := r.Exec(step); err != nil {
			t.Fatalf("%s: %v", step.Op, err)
		}
	}

	tests := []struct {
		step Step
		want int
	}{
		{Step{Op: OpList}, 2},
		{Step{Op: OpHistory}, 2},
		{Step{Op: OpFindByTitle, Title: "GROCERIES"}, 2},
		{Step{Op: OpFindByDescription, Description: "Weekly"}, 1},
	}
	for _, tt := range tests {
		res, err := r.Exec(tt.step)
		if err != nil {
			t.Fatalf("%s: %v", tt.step.Op, err)
		}
		if len(res.Entities) != tt.want {
			t.Errorf("%s: got %d entities, want %d", tt.step.Op, len(res.Entities), tt.want)
		}
	}

	res, _ := r.Exec(Step{Op: OpHistory})
	if res.Entities[0].EntityKind() != tasks.KindEpic {
		t.Errorf("history order: got %s first, want epic", res.Entities[0].EntityKind())
	}

	if _, err := r.Exec(Step{Op: OpDeleteAllEpics}); err != nil {
		t.Fatalf("delete_all_epics: %v", err)
	}
	res, _ = r.Exec(Step{Op: OpList})
	if len(res.Entities) != 1 {
		t.Errorf("list after delete_all_epics: got %d, want 1", len(res.Entities))
	}
}

func TestRunPublishesRunEvents(t *testing.T) {
	bus := events.NewBus(64)
	var got []events.Event
	unsubscribe := bus.Subscribe(func(e events.Event) {
		got = append(got, e)
	}, events.EventRunStarted, events.EventRunCompleted)
	defer unsubscribe()

	runID := NewRunID()
	tr := tracker.New(nil, tracker.WithPublisher(bus), tracker.WithRunID(runID))
	r := NewRunner(tr, WithBus(bus), WithRunID(runID))

	if _, err := r.Run(context.Background(), mustParse(t, birthdayYAML)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	bus.Close()

	if len(got) != 2 {
		t.Fatalf("run events: got %d, want 2", len(got))
	}
	if got[0].Type != events.EventRunStarted {
		t.Errorf("first run event: got %s, want %s", got[0].Type, events.EventRunStarted)
	}

	var completed *events.Event
	for i := range got {
		if got[i].RunID != runID {
			t.Errorf("RunID: got %q, want %q", got[i].RunID, runID)
		}
		if got[i].Type == events.EventRunCompleted {
			completed = &got[i]
		}
	}
	if completed == nil {
		t.Fatal("no run.completed event")
	}
	p, ok := events.ExtractPayload[events.RunCompletedPayload](*completed)
	if !ok || p.Name != "birthday" || p.Steps != 8 || p.Failed != 0 {
		t.Errorf("run.completed payload: got %+v", p)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(tracker.New(nil)).Run(ctx, mustParse(t, birthdayYAML))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("results: got %d, want 0", len(report.Results))
	}
}
