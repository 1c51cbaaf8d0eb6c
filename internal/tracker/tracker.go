// Package tracker coordinates the task, epic and subtask stores: it assigns
// ids, enforces the epic/subtask relationship, derives epic status, cascades
// deletes and records views in the history.
package tracker

import (
	"log/slog"
	"sync"

	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/history"
	"github.com/dohr-michael/tasktrack/internal/storage/memstore"
	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// Publisher receives change events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Tracker is the coordinator. Each public method runs under a single lock,
// so every call is atomic with respect to the others.
type Tracker struct {
	mu sync.Mutex

	ids       tasks.IDGenerator
	taskDB    *memstore.Store[*tasks.Task]
	epicDB    *memstore.Store[*tasks.Epic]
	subtaskDB *memstore.Store[*tasks.Subtask]
	history   *history.Tracker

	publisher Publisher
	logger    *slog.Logger
	runID     string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHistoryLimit bounds the history to n entries (0 = unbounded).
func WithHistoryLimit(n int) Option {
	return func(t *Tracker) { t.history = history.New(history.WithLimit(n)) }
}

// WithPublisher sends change events to p.
func WithPublisher(p Publisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithRunID tags published events with runID.
func WithRunID(runID string) Option {
	return func(t *Tracker) { t.runID = runID }
}

// New creates a tracker drawing ids from ids. A nil generator gets a fresh
// Sequence starting at 1.
func New(ids tasks.IDGenerator, opts ...Option) *Tracker {
	if ids == nil {
		ids = tasks.NewSequence()
	}
	t := &Tracker{
		ids:       ids,
		taskDB:    memstore.New[*tasks.Task](tasks.KindTask),
		epicDB:    memstore.New[*tasks.Epic](tasks.KindEpic),
		subtaskDB: memstore.New[*tasks.Subtask](tasks.KindSubtask),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.history == nil {
		t.history = history.New()
	}
	return t
}

// SetLogger replaces the logger used for debug output.
func (t *Tracker) SetLogger(l *slog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger = l
}

// SetHistoryLimit changes the history bound at runtime (0 = unbounded),
// evicting the least recently viewed entries that no longer fit.
func (t *Tracker) SetHistoryLimit(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history.SetLimit(n)
}

// History returns copies of the viewed entities, least recent first.
func (t *Tracker) History() []tasks.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.history.Snapshot()
}

// view records e in the history and announces it.
func (t *Tracker) view(e tasks.Entity) {
	t.history.Record(e)
	t.publish(events.EntityViewedPayload{Entity: entityRef(e)})
}

// forget removes id from the history.
func (t *Tracker) forget(ids ...tasks.ID) {
	for _, id := range ids {
		t.history.Remove(id)
	}
}

// rederive recomputes the status of the stored epic with the given id from
// the subtasks it owns and persists it. Unknown epics are ignored.
func (t *Tracker) rederive(epicID tasks.ID) {
	epic, ok := t.epicDB.FindByID(epicID)
	if !ok {
		return
	}
	owned := make([]*tasks.Subtask, 0, len(epic.SubtaskIDs()))
	for _, id := range epic.SubtaskIDs() {
		if s, ok := t.subtaskDB.FindByID(id); ok {
			owned = append(owned, s)
		}
	}

	from := epic.Status()
	if !tasks.ApplyDerivedStatus(epic, owned) {
		return
	}
	t.saveEpic(epic)

	t.logger.Debug("epic status derived", "epic_id", epicID, "from", from, "to", epic.Status(), "subtasks", len(owned))
	t.publish(events.EpicStatusChangedPayload{
		EpicID:   int(epicID),
		From:     string(from),
		To:       string(epic.Status()),
		Subtasks: len(owned),
	})
}

// saveEpic writes back an epic the caller has just read. A failure means the
// stores disagree with each other.
func (t *Tracker) saveEpic(epic *tasks.Epic) {
	if err := t.epicDB.Update(epic); err != nil {
		t.logger.Error("epic store out of sync", "epic_id", epic.ID, "error", err)
	}
}

func (t *Tracker) reject(err error) error {
	t.logger.Debug("operation rejected", "error", err)
	return err
}

func (t *Tracker) publish(payload events.EventPayload) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(events.NewTypedEventWithRun(events.SourceTracker, payload, t.runID))
}

func entityRef(e tasks.Entity) events.EntityRef {
	ref := events.EntityRef{
		ID:     int(e.EntityID()),
		Kind:   string(e.EntityKind()),
		Title:  e.EntityTitle(),
		Status: string(e.EntityStatus()),
	}
	if s, ok := e.(*tasks.Subtask); ok {
		ref.EpicID = int(s.EpicID)
	}
	return ref
}
