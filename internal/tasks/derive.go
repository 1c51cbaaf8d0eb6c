package tasks

// DeriveStatus maps the statuses of an epic's subtasks to the epic status:
// no subtasks or all new -> new, all done -> done, anything else -> in progress.
func DeriveStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusNew
	}
	allNew, allDone := true, true
	for _, s := range statuses {
		s = s.OrNew()
		if s != StatusNew {
			allNew = false
		}
		if s != StatusDone {
			allDone = false
		}
	}
	switch {
	case allNew:
		return StatusNew
	case allDone:
		return StatusDone
	default:
		return StatusInProgress
	}
}

// ApplyDerivedStatus recomputes e's status from subtasks. It is the only
// writer of an epic's status and returns true when the status changed.
func ApplyDerivedStatus(e *Epic, subtasks []*Subtask) bool {
	statuses := make([]Status, 0, len(subtasks))
	for _, s := range subtasks {
		statuses = append(statuses, s.Status)
	}
	next := DeriveStatus(statuses)
	changed := e.Status() != next
	e.status = next
	return changed
}
