package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/tasks"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

var (
	// ErrInvalidStep marks steps that cannot be executed as written
	// (unknown ref, malformed status).
	ErrInvalidStep = errors.New("invalid step")
	// ErrAssertion marks a failed expect_status step.
	ErrAssertion = errors.New("assertion failed")
)

// Result is the outcome of one step.
type Result struct {
	Step     Step
	Entities []tasks.Entity // created, read, listed or found entities
	Err      error          // tracker error, including expected ones
}

// Report summarizes a script run.
type Report struct {
	Name     string
	RunID    string
	Results  []Result
	Failed   int
	Duration time.Duration
}

// Runner executes steps against a tracker and keeps the ref bindings
// between steps.
type Runner struct {
	tracker *tracker.Tracker
	refs    map[string]tasks.ID

	bus    *events.Bus
	source events.EventSource
	runID  string
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBus publishes run events to bus.
func WithBus(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithSource sets the source of published run events.
func WithSource(source events.EventSource) Option {
	return func(r *Runner) { r.source = source }
}

// WithRunID sets the run id attached to run events.
func WithRunID(runID string) Option {
	return func(r *Runner) { r.runID = runID }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner driving tr.
func NewRunner(tr *tracker.Tracker, opts ...Option) *Runner {
	r := &Runner{
		tracker: tr,
		refs:    make(map[string]tasks.ID),
		source:  events.SourceScript,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step of s in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	report := &Report{Name: s.Name, RunID: r.runID}
	start := time.Now()

	r.publish(ctx, events.RunStartedPayload{Name: s.Name, Steps: len(s.Steps)})
	r.logger.Info("script started", "name", s.Name, "run_id", r.runID, "steps", len(s.Steps))

	var runErr error
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res, err := r.Exec(step)
		report.Results = append(report.Results, res)
		if err != nil {
			report.Failed++
			runErr = fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
			break
		}
	}
	report.Duration = time.Since(start)

	completed := events.RunCompletedPayload{
		Name:     s.Name,
		Steps:    len(report.Results),
		Failed:   report.Failed,
		Duration: report.Duration,
	}
	if runErr != nil {
		completed.Error = runErr.Error()
		r.logger.Warn("script failed", "name", s.Name, "run_id", r.runID, "error", runErr)
	} else {
		r.logger.Info("script completed", "name", s.Name, "run_id", r.runID, "duration", report.Duration)
	}
	r.publish(context.WithoutCancel(ctx), completed)

	return report, runErr
}

// Exec runs a single step. The returned error is non-nil when the step did
// not behave as written: an unexpected tracker error, a missing expected
// error, a failed assertion or an invalid step.
func (r *Runner) Exec(step Step) (Result, error) {
	res := Result{Step: step}
	if err := step.Validate(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}

	res.Entities, res.Err = r.apply(step)
	r.logger.Debug("step executed", "run_id", r.runID, "op", step.Op, "entities", len(res.Entities), "error", res.Err)

	if errors.Is(res.Err, ErrInvalidStep) || errors.Is(res.Err, ErrAssertion) {
		return res, res.Err
	}
	return res, checkExpectation(step, res.Err)
}

// Ref returns the id bound to name by an earlier create step.
func (r *Runner) Ref(name string) (tasks.ID, bool) {
	id, ok := r.refs[name]
	return id, ok
}

func checkExpectation(step Step, err error) error {
	var want error
	switch step.ExpectError {
	case "":
		return err
	case ExpectNotFound:
		want = tasks.ErrNotFound
	case ExpectInvalidRelationship:
		want = tasks.ErrInvalidRelationship
	}
	if errors.Is(err, want) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("expected %s error, got success", step.ExpectError)
	}
	return fmt.Errorf("expected %s error, got: %w", step.ExpectError, err)
}

func (r *Runner) apply(step Step) ([]tasks.Entity, error) {
	tr := r.tracker

	switch step.Op {
	case OpCreateTask:
		draft := tasks.NewTask(step.Title, step.Description)
		if err := applyStatus(step.Status, &draft.Status); err != nil {
			return nil, err
		}
		created := tr.CreateTask(draft)
		r.bind(step.Ref, created.ID)
		return one(created), nil

	case OpCreateEpic:
		draft := tasks.NewEpic(step.Title, step.Description)
		if step.Status != "" {
			st, err := parseStatus(step.Status)
			if err != nil {
				return nil, err
			}
			if err := draft.SetStatus(st); err != nil {
				return nil, err
			}
		}
		created := tr.CreateEpic(draft)
		r.bind(step.Ref, created.ID)
		return one(created), nil

	case OpCreateSubtask:
		epicID, err := r.resolve(step.Epic)
		if err != nil {
			return nil, err
		}
		draft := tasks.NewSubtask(step.Title, step.Description, epicID)
		if step.Target != "" {
			if draft.ID, err = r.resolve(step.Target); err != nil {
				return nil, err
			}
		}
		if err := applyStatus(step.Status, &draft.Status); err != nil {
			return nil, err
		}
		created, err := tr.CreateSubtask(draft)
		if err != nil {
			return nil, err
		}
		r.bind(step.Ref, created.ID)
		return one(created), nil

	case OpGetTask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		v, ok := tr.GetTask(id)
		if !ok {
			return nil, tasks.NotFound("get task", tasks.KindTask, id)
		}
		return one(v), nil

	case OpGetEpic:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		v, ok := tr.GetEpic(id)
		if !ok {
			return nil, tasks.NotFound("get epic", tasks.KindEpic, id)
		}
		return one(v), nil

	case OpGetSubtask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		v, ok := tr.GetSubtask(id)
		if !ok {
			return nil, tasks.NotFound("get subtask", tasks.KindSubtask, id)
		}
		return one(v), nil

	case OpUpdateTask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		next := &tasks.Task{ID: id}
		if current := findTask(tr, id); current != nil {
			next = current
		}
		setText(step, &next.Title, &next.Description)
		if err := applyStatus(step.Status, &next.Status); err != nil {
			return nil, err
		}
		if err := tr.UpdateTask(next); err != nil {
			return nil, err
		}
		return one(next), nil

	case OpUpdateEpic:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		next := &tasks.Epic{ID: id}
		if current := findEpic(tr, id); current != nil {
			next = current
		}
		if step.Status != "" {
			st, err := parseStatus(step.Status)
			if err != nil {
				return nil, err
			}
			if err := next.SetStatus(st); err != nil {
				return nil, err
			}
		}
		setText(step, &next.Title, &next.Description)
		if err := tr.UpdateEpic(next); err != nil {
			return nil, err
		}
		return one(findEpic(tr, id)), nil

	case OpUpdateSubtask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		next := &tasks.Subtask{ID: id}
		if current := findSubtask(tr, id); current != nil {
			next = current
		}
		if step.Epic != "" {
			if next.EpicID, err = r.resolve(step.Epic); err != nil {
				return nil, err
			}
		}
		setText(step, &next.Title, &next.Description)
		if err := applyStatus(step.Status, &next.Status); err != nil {
			return nil, err
		}
		if err := tr.UpdateSubtask(next); err != nil {
			return nil, err
		}
		return one(next), nil

	case OpDeleteTask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		tr.DeleteTask(id)
		return nil, nil

	case OpDeleteEpic:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		return nil, tr.DeleteEpic(id)

	case OpDeleteSubtask:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		return nil, tr.DeleteSubtask(id)

	case OpDeleteAllTasks:
		tr.DeleteAllTasks()
		return nil, nil

	case OpDeleteAllEpics:
		tr.DeleteAllEpics()
		return nil, nil

	case OpDeleteAllSubtasks:
		tr.DeleteAllSubtasks()
		return nil, nil

	case OpEpicSubtasks:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		subtasks, err := tr.EpicSubtasks(id)
		if err != nil {
			return nil, err
		}
		return entities(subtasks), nil

	case OpFindByTitle:
		return tr.FindByTitle(step.Title), nil

	case OpFindByDescription:
		return tr.FindByDescription(step.Description), nil

	case OpList:
		out := entities(tr.Tasks())
		out = append(out, entities(tr.Epics())...)
		return append(out, entities(tr.Subtasks())...), nil

	case OpHistory:
		return tr.History(), nil

	case OpExpectStatus:
		id, err := r.resolve(step.Target)
		if err != nil {
			return nil, err
		}
		want, err := parseStatus(step.Status)
		if err != nil {
			return nil, err
		}
		e := findEntity(tr, id)
		if e == nil {
			return nil, tasks.NotFound("expect status", "entity", id)
		}
		if got := e.EntityStatus(); got != want {
			return one(e), fmt.Errorf("%w: %s %d has status %s, want %s", ErrAssertion, e.EntityKind(), id, got, want)
		}
		return one(e), nil
	}

	return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidStep, step.Op)
}

func (r *Runner) resolve(ref string) (tasks.ID, error) {
	if id, ok := r.refs[ref]; ok {
		return id, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return tasks.ID(n), nil
	}
	return 0, fmt.Errorf("%w: unknown ref %q", ErrInvalidStep, ref)
}

func (r *Runner) bind(ref string, id tasks.ID) {
	if ref != "" {
		r.refs[ref] = id
	}
}

func (r *Runner) publish(ctx context.Context, payload events.EventPayload) {
	if r.bus == nil {
		return
	}
	if err := r.bus.PublishAsync(ctx, events.NewTypedEventWithRun(r.source, payload, r.runID)); err != nil {
		r.logger.Debug("run event dropped", "type", payload.EventType(), "error", err)
	}
}

func parseStatus(s string) (tasks.Status, error) {
	st, err := tasks.ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}
	return st, nil
}

func applyStatus(s string, dst *tasks.Status) error {
	if s == "" {
		return nil
	}
	st, err := parseStatus(s)
	if err != nil {
		return err
	}
	*dst = st
	return nil
}

func setText(step Step, title, description *string) {
	if step.Title != "" {
		*title = step.Title
	}
	if step.Description != "" {
		*description = step.Description
	}
}

func one(e tasks.Entity) []tasks.Entity {
	return []tasks.Entity{e}
}

func entities[T tasks.Entity](in []T) []tasks.Entity {
	out := make([]tasks.Entity, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// The lookups below go through the listing calls so that reading the
// current state does not count as a view.

func findTask(tr *tracker.Tracker, id tasks.ID) *tasks.Task {
	for _, v := range tr.Tasks() {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func findEpic(tr *tracker.Tracker, id tasks.ID) *tasks.Epic {
	for _, v := range tr.Epics() {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func findSubtask(tr *tracker.Tracker, id tasks.ID) *tasks.Subtask {
	for _, v := range tr.Subtasks() {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func findEntity(tr *tracker.Tracker, id tasks.ID) tasks.Entity {
	if v := findTask(tr, id); v != nil {
		return v
	}
	if v := findEpic(tr, id); v != nil {
		return v
	}
	if v := findSubtask(tr, id); v != nil {
		return v
	}
	return nil
}
