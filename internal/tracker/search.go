package tracker

import (
	"cmp"
	"slices"

	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// FindByTitle returns every task, epic and subtask whose title equals title,
// ignoring case, ordered by id. Searching does not record views.
func (t *Tracker) FindByTitle(title string) []tasks.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	return merge(t.taskDB.FindByTitle(title), t.epicDB.FindByTitle(title), t.subtaskDB.FindByTitle(title))
}

// FindByDescription is FindByTitle for descriptions.
func (t *Tracker) FindByDescription(description string) []tasks.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	return merge(t.taskDB.FindByDescription(description), t.epicDB.FindByDescription(description), t.subtaskDB.FindByDescription(description))
}

func merge(ts []*tasks.Task, es []*tasks.Epic, ss []*tasks.Subtask) []tasks.Entity {
	out := make([]tasks.Entity, 0, len(ts)+len(es)+len(ss))
	for _, v := range ts {
		out = append(out, v)
	}
	for _, v := range es {
		out = append(out, v)
	}
	for _, v := range ss {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b tasks.Entity) int {
		return cmp.Compare(a.EntityID(), b.EntityID())
	})
	return out
}
