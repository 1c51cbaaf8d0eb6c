package tracker

import (
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// CreateTask stores a copy of draft under a fresh id. An unset status becomes
// new; any id on the draft is ignored.
func (t *Tracker) CreateTask(draft *tasks.Task) *tasks.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	task := &tasks.Task{ID: t.ids.NextID()}
	if draft != nil {
		task.Title = draft.Title
		task.Description = draft.Description
		task.Status = draft.Status
	}
	task.Status = task.Status.OrNew()

	created := t.taskDB.Save(task)
	t.publish(events.EntityCreatedPayload{Entity: entityRef(created)})
	return created
}

// GetTask returns a copy of the task and records the view.
func (t *Tracker) GetTask(id tasks.ID) (*tasks.Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.taskDB.FindByID(id)
	if !ok {
		return nil, false
	}
	t.view(task)
	return task, true
}

// UpdateTask replaces the stored task with task.
func (t *Tracker) UpdateTask(task *tasks.Task) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task == nil {
		return t.reject(tasks.NotFound("update task", tasks.KindTask, 0))
	}
	next := task.Clone()
	next.Status = next.Status.OrNew()
	if err := t.taskDB.Update(next); err != nil {
		return t.reject(err)
	}
	t.publish(events.EntityUpdatedPayload{Entity: entityRef(next)})
	return nil
}

// DeleteTask removes the task and its history entry. Unknown ids are ignored.
func (t *Tracker) DeleteTask(id tasks.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.taskDB.FindByID(id)
	if !ok {
		return
	}
	t.taskDB.Delete(id)
	t.forget(id)
	t.publish(events.EntityDeletedPayload{Entity: entityRef(task)})
}

// DeleteAllTasks removes every task and their history entries.
func (t *Tracker) DeleteAllTasks() {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := t.taskDB.FindAll()
	ids := t.taskDB.DeleteAll()
	t.forget(ids...)
	t.logger.Debug("tasks cleared", "count", len(ids))
	for _, task := range removed {
		t.publish(events.EntityDeletedPayload{Entity: entityRef(task)})
	}
}

// Tasks returns copies of all tasks ordered by id. Listing does not count as a view.
func (t *Tracker) Tasks() []*tasks.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.taskDB.FindAll()
}
