package tasks

import "sync/atomic"

// IDGenerator hands out entity ids.
type IDGenerator interface {
	NextID() ID
}

// Sequence is a process-scoped counter. The first id is 1; ids increase by one
// per call and are never reset or reused.
type Sequence struct {
	last atomic.Int64
}

// NewSequence returns a sequence whose first NextID is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NextID returns the next id.
func (s *Sequence) NextID() ID {
	return ID(s.last.Add(1))
}
