// Package memstore provides an in-memory entity store that never shares
// memory with its callers: every value crossing the store boundary is cloned.
package memstore

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/dohr-michael/tasktrack/internal/tasks"
)

// Record is the contract stored entities satisfy. T is the pointer type itself,
// so Clone returns a value of the same type.
type Record[T any] interface {
	GetID() tasks.ID
	GetTitle() string
	GetDescription() string
	Clone() T
}

// Store holds entities of one kind keyed by id.
type Store[T Record[T]] struct {
	mu    sync.RWMutex
	items map[tasks.ID]T
	kind  tasks.Kind // for error messages
}

// New creates an empty store for entities of the given kind.
func New[T Record[T]](kind tasks.Kind) *Store[T] {
	return &Store[T]{items: make(map[tasks.ID]T), kind: kind}
}

// Save stores a copy of v under its id and returns another copy.
func (s *Store[T]) Save(v T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[v.GetID()] = v.Clone()
	return v.Clone()
}

// FindByID returns a copy of the entity with the given id.
func (s *Store[T]) FindByID(id tasks.ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.Clone(), true
}

// Update replaces the stored entity with a copy of v.
func (s *Store[T]) Update(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := v.GetID()
	if _, ok := s.items[id]; !ok {
		return tasks.NotFound("update "+string(s.kind), s.kind, id)
	}
	s.items[id] = v.Clone()
	return nil
}

// Delete removes the entity with the given id. Unknown ids are ignored.
func (s *Store[T]) Delete(id tasks.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
}

// DeleteAll empties the store and returns the removed ids in ascending order.
func (s *Store[T]) DeleteAll() []tasks.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]tasks.ID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	clear(s.items)
	return ids
}

// FindAll returns copies of every entity, ordered by id.
func (s *Store[T]) FindAll() []T {
	return s.FindBy(func(T) bool { return true })
}

// FindBy returns copies of the entities matching keep, ordered by id.
func (s *Store[T]) FindBy(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0)
	for _, v := range s.items {
		if keep(v) {
			result = append(result, v.Clone())
		}
	}
	slices.SortFunc(result, func(a, b T) int {
		return cmp.Compare(a.GetID(), b.GetID())
	})
	return result
}

// FindByTitle returns entities whose title equals title, ignoring case.
// An empty query matches nothing.
func (s *Store[T]) FindByTitle(title string) []T {
	if title == "" {
		return []T{}
	}
	return s.FindBy(func(v T) bool { return strings.EqualFold(v.GetTitle(), title) })
}

// FindByDescription returns entities whose description equals description,
// ignoring case. An empty query matches nothing.
func (s *Store[T]) FindByDescription(description string) []T {
	if description == "" {
		return []T{}
	}
	return s.FindBy(func(v T) bool { return strings.EqualFold(v.GetDescription(), description) })
}
