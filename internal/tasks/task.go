// Package tasks defines the tracked entities (tasks, epics, subtasks), their
// statuses and errors, and the derivation rule that computes an epic's status.
package tasks

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ID identifies an entity. IDs come from a single Sequence and are never reused.
type ID int

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Status represents the lifecycle state of a task, subtask or epic.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// OrNew returns s, or StatusNew when s is unset.
func (s Status) OrNew() Status {
	if s == "" {
		return StatusNew
	}
	return s
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new":
		return StatusNew, nil
	case "in_progress", "in-progress", "inprogress", "in progress":
		return StatusInProgress, nil
	case "done":
		return StatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Kind tells the three entity kinds apart.
type Kind string

const (
	KindTask    Kind = "task"
	KindEpic    Kind = "epic"
	KindSubtask Kind = "subtask"
)

// Entity is implemented by *Task, *Epic and *Subtask.
type Entity interface {
	EntityID() ID
	EntityKind() Kind
	EntityTitle() string
	EntityStatus() Status
	CloneEntity() Entity
}

// Task is a standalone unit of work whose status is set by its owner.
type Task struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
}

// NewTask returns an unsaved task draft.
func NewTask(title, description string) *Task {
	return &Task{Title: title, Description: description, Status: StatusNew}
}

// Clone returns an independent copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (t *Task) GetID() ID { return t.ID }
func (t *Task) GetTitle() string { return t.Title }
func (t *Task) GetDescription() string { return t.Description }

func (t *Task) EntityID() ID { return t.ID }
func (t *Task) EntityKind() Kind { return KindTask }
func (t *Task) EntityTitle() string { return t.Title }
func (t *Task) EntityStatus() Status { return t.Status }
func (t *Task) CloneEntity() Entity { return t.Clone() }

// Subtask is a task owned by exactly one epic.
type Subtask struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	EpicID      ID     `json:"epic_id"`
}

// NewSubtask returns an unsaved subtask draft owned by epicID.
func NewSubtask(title, description string, epicID ID) *Subtask {
	return &Subtask{Title: title, Description: description, EpicID: epicID}
}

// Clone returns an independent copy.
func (s *Subtask) Clone() *Subtask {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *Subtask) GetID() ID { return s.ID }
func (s *Subtask) GetTitle() string { return s.Title }
func (s *Subtask) GetDescription() string { return s.Description }

func (s *Subtask) EntityID() ID { return s.ID }
func (s *Subtask) EntityKind() Kind { return KindSubtask }
func (s *Subtask) EntityTitle() string { return s.Title }
func (s *Subtask) EntityStatus() Status { return s.Status }
func (s *Subtask) CloneEntity() Entity { return s.Clone() }

// Epic groups subtasks. Its status is never set by callers: it is always
// recomputed from the subtasks it owns (see ApplyDerivedStatus).
type Epic struct {
	ID          ID
	Title       string
	Description string

	status     Status
	subtaskIDs []ID
}

// NewEpic returns an unsaved epic draft with no subtasks.
func NewEpic(title, description string) *Epic {
	return &Epic{Title: title, Description: description, status: StatusNew}
}

// RestoreEpic rebuilds an epic from previously stored fields.
func RestoreEpic(id ID, title, description string, status Status, subtaskIDs []ID) *Epic {
	return &Epic{
		ID:          id,
		Title:       title,
		Description: description,
		status:      status.OrNew(),
		subtaskIDs:  slices.Clone(subtaskIDs),
	}
}

// Status returns the derived status.
func (e *Epic) Status() Status {
	return e.status.OrNew()
}

// SetStatus always fails: epic status is read-only outside derivation.
func (e *Epic) SetStatus(Status) error {
	return &Error{
		Op:      "set epic status",
		Kind:    KindEpic,
		ID:      e.ID,
		Message: "epic status is derived from its subtasks",
		Err:     ErrInvalidRelationship,
	}
}

// SubtaskIDs returns a copy of the owned subtask ids.
func (e *Epic) SubtaskIDs() []ID {
	return slices.Clone(e.subtaskIDs)
}

// SetSubtaskIDs replaces the owned subtask ids with a copy of ids.
func (e *Epic) SetSubtaskIDs(ids []ID) {
	e.subtaskIDs = slices.Clone(ids)
}

// HasSubtask reports whether id is owned by the epic.
func (e *Epic) HasSubtask(id ID) bool {
	return slices.Contains(e.subtaskIDs, id)
}

// AddSubtaskID records id as owned. Adding an owned id is a no-op.
func (e *Epic) AddSubtaskID(id ID) {
	if !e.HasSubtask(id) {
		e.subtaskIDs = append(e.subtaskIDs, id)
	}
}

// RemoveSubtaskID drops id from the owned set.
func (e *Epic) RemoveSubtaskID(id ID) {
	e.subtaskIDs = slices.DeleteFunc(e.subtaskIDs, func(v ID) bool { return v == id })
}

// Clone returns an independent copy, including the subtask id set.
func (e *Epic) Clone() *Epic {
	if e == nil {
		return nil
	}
	c := *e
	c.subtaskIDs = slices.Clone(e.subtaskIDs)
	return &c
}

func (e *Epic) GetID() ID { return e.ID }
func (e *Epic) GetTitle() string { return e.Title }
func (e *Epic) GetDescription() string { return e.Description }

func (e *Epic) EntityID() ID { return e.ID }
func (e *Epic) EntityKind() Kind { return KindEpic }
func (e *Epic) EntityTitle() string { return e.Title }
func (e *Epic) EntityStatus() Status { return e.Status() }
func (e *Epic) CloneEntity() Entity { return e.Clone() }

type epicJSON struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	SubtaskIDs  []ID   `json:"subtask_ids"`
}

// MarshalJSON exposes the derived status and subtask ids.
func (e *Epic) MarshalJSON() ([]byte, error) {
	ids := e.SubtaskIDs()
	if ids == nil {
		ids = []ID{}
	}
	return json.Marshal(epicJSON{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Status:      e.Status(),
		SubtaskIDs:  ids,
	})
}

// UnmarshalJSON restores an epic, including its stored status.
func (e *Epic) UnmarshalJSON(data []byte) error {
	var aux epicJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = *RestoreEpic(aux.ID, aux.Title, aux.Description, aux.Status, aux.SubtaskIDs)
	return nil
}
