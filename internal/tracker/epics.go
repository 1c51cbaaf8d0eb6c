package tracker

import (
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// CreateEpic stores a new epic with no subtasks under a fresh id.
func (t *Tracker) CreateEpic(draft *tasks.Epic) *tasks.Epic {
	t.mu.Lock()
	defer t.mu.Unlock()

	epic := tasks.NewEpic("", "")
	if draft != nil {
		epic.Title = draft.Title
		epic.Description = draft.Description
	}
	epic.ID = t.ids.NextID()
	tasks.ApplyDerivedStatus(epic, nil)

	created := t.epicDB.Save(epic)
	t.publish(events.EntityCreatedPayload{Entity: entityRef(created)})
	return created
}

// GetEpic returns a copy of the epic and records the view.
func (t *Tracker) GetEpic(id tasks.ID) (*tasks.Epic, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	epic, ok := t.epicDB.FindByID(id)
	if !ok {
		return nil, false
	}
	t.view(epic)
	return epic, true
}

// UpdateEpic replaces the epic's title and description and recomputes its
// status. Membership belongs to the subtask operations: the subtask ids on
// epic are only validated, never applied. A set naming the epic itself or a
// subtask the epic does not own is rejected with ErrInvalidRelationship; any
// other set, including a smaller one, leaves the stored membership as it is.
func (t *Tracker) UpdateEpic(epic *tasks.Epic) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	const op = "update epic"
	if epic == nil {
		return t.reject(tasks.NotFound(op, tasks.KindEpic, 0))
	}
	current, ok := t.epicDB.FindByID(epic.ID)
	if !ok {
		return t.reject(tasks.NotFound(op, tasks.KindEpic, epic.ID))
	}
	for _, id := range epic.SubtaskIDs() {
		if id == epic.ID {
			return t.reject(tasks.InvalidRelationship(op, tasks.KindEpic, epic.ID, "epic cannot be its own subtask"))
		}
		if !current.HasSubtask(id) {
			return t.reject(tasks.InvalidRelationship(op, tasks.KindEpic, epic.ID, "subtask "+id.String()+" is not owned by this epic"))
		}
	}

	current.Title = epic.Title
	current.Description = epic.Description
	if err := t.epicDB.Update(current); err != nil {
		return t.reject(err)
	}
	t.publish(events.EntityUpdatedPayload{Entity: entityRef(current)})
	t.rederive(current.ID)
	return nil
}

// DeleteEpic removes the epic together with every subtask it owns.
func (t *Tracker) DeleteEpic(id tasks.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	epic, ok := t.epicDB.FindByID(id)
	if !ok {
		return t.reject(tasks.NotFound("delete epic", tasks.KindEpic, id))
	}
	owned := epic.SubtaskIDs()
	for _, sid := range owned {
		if s, ok := t.subtaskDB.FindByID(sid); ok {
			t.subtaskDB.Delete(sid)
			t.publish(events.EntityDeletedPayload{Entity: entityRef(s), Cascade: true})
		}
		t.forget(sid)
	}
	t.epicDB.Delete(id)
	t.forget(id)

	t.logger.Debug("epic deleted", "epic_id", id, "subtasks", len(owned))
	t.publish(events.EntityDeletedPayload{Entity: entityRef(epic)})
	return nil
}

// DeleteAllEpics removes every epic and every subtask.
func (t *Tracker) DeleteAllEpics() {
	t.mu.Lock()
	defer t.mu.Unlock()

	epics := t.epicDB.FindAll()
	subtasks := t.subtaskDB.FindAll()
	for _, e := range epics {
		t.forget(e.ID)
	}
	for _, s := range subtasks {
		t.forget(s.ID)
	}
	t.subtaskDB.DeleteAll()
	t.epicDB.DeleteAll()

	t.logger.Debug("epics cleared", "epics", len(epics), "subtasks", len(subtasks))
	for _, s := range subtasks {
		t.publish(events.EntityDeletedPayload{Entity: entityRef(s), Cascade: true})
	}
	for _, e := range epics {
		t.publish(events.EntityDeletedPayload{Entity: entityRef(e)})
	}
}

// Epics returns copies of all epics ordered by id.
func (t *Tracker) Epics() []*tasks.Epic {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.epicDB.FindAll()
}

// EpicSubtasks returns copies of the subtasks owned by the epic.
func (t *Tracker) EpicSubtasks(epicID tasks.ID) ([]*tasks.Subtask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	epic, ok := t.epicDB.FindByID(epicID)
	if !ok {
		return nil, tasks.NotFound("epic subtasks", tasks.KindEpic, epicID)
	}
	return t.subtaskDB.FindBy(func(s *tasks.Subtask) bool { return epic.HasSubtask(s.ID) }), nil
}
