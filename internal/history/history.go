// Package history records which entities were viewed, most recent last,
// keeping at most one entry per id.
package history

import (
	"sync"

	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// node is one access record. head and tail are sentinels and carry no entity.
type node struct {
	entity tasks.Entity
	prev   *node
	next   *node
}

// Tracker is a doubly linked list of access records indexed by entity id.
// Record and Remove are O(1); Snapshot walks the list.
type Tracker struct {
	mu    sync.RWMutex
	index map[tasks.ID]*node
	head  *node
	tail  *node
	limit int // 0 = unbounded
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLimit caps the number of entries; the least recently viewed entry is
// evicted first. n <= 0 leaves the history unbounded.
func WithLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.limit = n
		}
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		index: make(map[tasks.ID]*node),
		head:  &node{},
		tail:  &node{},
	}
	t.head.next = t.tail
	t.tail.prev = t.head
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a copy of e as the most recent view. A previous record for
// the same id is dropped first. A nil entity is ignored.
func (t *Tracker) Record(e tasks.Entity) {
	if isNil(e) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := e.EntityID()
	if old, ok := t.index[id]; ok {
		unlink(old)
	}
	t.index[id] = t.linkLast(e.CloneEntity())
	t.evict()
}

// SetLimit changes the cap and evicts the least recently viewed entries that
// no longer fit. n <= 0 makes the history unbounded.
func (t *Tracker) SetLimit(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.limit = max(n, 0)
	t.evict()
}

func (t *Tracker) evict() {
	for t.limit > 0 && len(t.index) > t.limit {
		oldest := t.head.next
		unlink(oldest)
		delete(t.index, oldest.entity.EntityID())
	}
}

// Remove drops the record for id, if any.
func (t *Tracker) Remove(id tasks.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.index[id]; ok {
		unlink(n)
		delete(t.index, id)
	}
}

// Snapshot returns copies of the recorded entities, least recent first.
func (t *Tracker) Snapshot() []tasks.Entity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]tasks.Entity, 0, len(t.index))
	for n := t.head.next; n != t.tail; n = n.next {
		result = append(result, n.entity.CloneEntity())
	}
	return result
}

func (t *Tracker) linkLast(e tasks.Entity) *node {
	n := &node{entity: e, prev: t.tail.prev, next: t.tail}
	t.tail.prev.next = n
	t.tail.prev = n
	return n
}

func unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// isNil catches typed nil pointers wrapped in the interface.
func isNil(e tasks.Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *tasks.Task:
		return v == nil
	case *tasks.Epic:
		return v == nil
	case *tasks.Subtask:
		return v == nil
	}
	return false
}
