package tasks

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRelationship = errors.New("invalid relationship")
)

// Error describes a rejected operation on a specific entity.
type Error struct {
	Op      string // "update task", "create subtask", ...
	Kind    Kind   // kind of the entity the error refers to
	ID      ID     // offending id, 0 when not applicable
	Message string
	Err     error // ErrNotFound or ErrInvalidRelationship
}

func (e *Error) Error() string {
	subject := string(e.Kind)
	if e.ID != 0 {
		subject = fmt.Sprintf("%s %d", e.Kind, e.ID)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Op, subject, e.Message)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, subject, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrNotFound error for kind/id.
func NotFound(op string, kind Kind, id ID) error {
	return &Error{Op: op, Kind: kind, ID: id, Err: ErrNotFound}
}

// InvalidRelationship builds an ErrInvalidRelationship error.
func InvalidRelationship(op string, kind Kind, id ID, msg string) error {
	return &Error{Op: op, Kind: kind, ID: id, Message: msg, Err: ErrInvalidRelationship}
}
