package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no news item has the requested id
var ErrNotFound = errors.New("news item not found")

// Error reports that the store itself failed (disk, permissions, SQL).
// Callers surface it; nothing in the store retries.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
