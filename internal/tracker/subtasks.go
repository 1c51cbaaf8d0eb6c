package tracker

import (
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// CreateSubtask stores a new subtask under a fresh id and attaches it to its
// epic. It fails with ErrInvalidRelationship when the draft names itself as
// its epic and with ErrNotFound when the epic does not exist.
func (t *Tracker) CreateSubtask(draft *tasks.Subtask) (*tasks.Subtask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	const op = "create subtask"
	if draft == nil {
		return nil, t.reject(tasks.NotFound(op, tasks.KindEpic, 0))
	}
	if draft.ID != 0 && draft.ID == draft.EpicID {
		return nil, t.reject(tasks.InvalidRelationship(op, tasks.KindSubtask, draft.ID, "subtask cannot be its own epic"))
	}
	epic, ok := t.epicDB.FindByID(draft.EpicID)
	if !ok {
		return nil, t.reject(tasks.NotFound(op, tasks.KindEpic, draft.EpicID))
	}

	subtask := &tasks.Subtask{
		ID:          t.ids.NextID(),
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status.OrNew(),
		EpicID:      epic.ID,
	}
	created := t.subtaskDB.Save(subtask)

	epic.AddSubtaskID(created.ID)
	t.saveEpic(epic)
	t.publish(events.EntityCreatedPayload{Entity: entityRef(created)})
	t.rederive(epic.ID)

	return created, nil
}

// GetSubtask returns a copy of the subtask and records the view.
func (t *Tracker) GetSubtask(id tasks.ID) (*tasks.Subtask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subtask, ok := t.subtaskDB.FindByID(id)
	if !ok {
		return nil, false
	}
	t.view(subtask)
	return subtask, true
}

// UpdateSubtask replaces the stored subtask. Moving a subtask to another epic
// detaches it from the old one; both epics have their status recomputed.
func (t *Tracker) UpdateSubtask(subtask *tasks.Subtask) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	const op = "update subtask"
	if subtask == nil {
		return t.reject(tasks.NotFound(op, tasks.KindSubtask, 0))
	}
	if subtask.ID == subtask.EpicID {
		return t.reject(tasks.InvalidRelationship(op, tasks.KindSubtask, subtask.ID, "subtask cannot be its own epic"))
	}
	current, ok := t.subtaskDB.FindByID(subtask.ID)
	if !ok {
		return t.reject(tasks.NotFound(op, tasks.KindSubtask, subtask.ID))
	}

	oldEpicID := current.EpicID
	moved := oldEpicID != subtask.EpicID
	if moved {
		newEpic, ok := t.epicDB.FindByID(subtask.EpicID)
		if !ok {
			return t.reject(tasks.NotFound(op, tasks.KindEpic, subtask.EpicID))
		}
		if oldEpic, ok := t.epicDB.FindByID(oldEpicID); ok {
			oldEpic.RemoveSubtaskID(subtask.ID)
			t.saveEpic(oldEpic)
		}
		newEpic.AddSubtaskID(subtask.ID)
		t.saveEpic(newEpic)
		t.logger.Debug("subtask moved", "subtask_id", subtask.ID, "from_epic", oldEpicID, "to_epic", subtask.EpicID)
	}

	next := subtask.Clone()
	next.Status = next.Status.OrNew()
	if err := t.subtaskDB.Update(next); err != nil {
		return t.reject(err)
	}
	t.publish(events.EntityUpdatedPayload{Entity: entityRef(next)})

	if moved {
		t.rederive(oldEpicID)
	}
	t.rederive(next.EpicID)
	return nil
}

// DeleteSubtask detaches the subtask from its epic and removes it.
func (t *Tracker) DeleteSubtask(id tasks.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.subtaskDB.FindByID(id)
	if !ok {
		return t.reject(tasks.NotFound("delete subtask", tasks.KindSubtask, id))
	}
	if epic, ok := t.epicDB.FindByID(current.EpicID); ok {
		epic.RemoveSubtaskID(id)
		t.saveEpic(epic)
	}
	t.subtaskDB.Delete(id)
	t.forget(id)
	t.publish(events.EntityDeletedPayload{Entity: entityRef(current)})
	t.rederive(current.EpicID)
	return nil
}

// DeleteAllSubtasks removes every subtask. Every epic is left empty with
// status new.
func (t *Tracker) DeleteAllSubtasks() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, epic := range t.epicDB.FindAll() {
		from := epic.Status()
		epic.SetSubtaskIDs(nil)
		if tasks.ApplyDerivedStatus(epic, nil) {
			t.publish(events.EpicStatusChangedPayload{EpicID: int(epic.ID), From: string(from), To: string(epic.Status())})
		}
		t.saveEpic(epic)
	}

	removed := t.subtaskDB.FindAll()
	ids := t.subtaskDB.DeleteAll()
	t.forget(ids...)
	t.logger.Debug("subtasks cleared", "count", len(ids))
	for _, s := range removed {
		t.publish(events.EntityDeletedPayload{Entity: entityRef(s)})
	}
}

// Subtasks returns copies of all subtasks ordered by id.
func (t *Tracker) Subtasks() []*tasks.Subtask {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.subtaskDB.FindAll()
}
