// Package store defines the persistence contract used by the sync
// coordinator and the overdue sweeper, and the error classification
// that decides whether a failed write is retried later.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// ErrNotFound is returned when a task ID does not exist. It is never transient.
var ErrNotFound = errors.New("task not found")

// ErrUnavailable marks a backend that cannot be reached right now.
var ErrUnavailable = errors.New("store unavailable")

// TaskStore is implemented by every persistence backend.
// Implementations must be safe for concurrent use.
type TaskStore interface {
	GetAll(ctx context.Context) ([]task.Task, error)
	GetByID(ctx context.Context, id int) (*task.Task, error)
	// Add persists t and returns it with the store-assigned ID.
	Add(ctx context.Context, t task.Task) (task.Task, error)
	Update(ctx context.Context, t task.Task) error
	Delete(ctx context.Context, id int) error
	// SetStatus writes the status directly. Entering Completed records
	// today's date as last completed.
	SetStatus(ctx context.Context, id int, s task.Status) error
}

// Pinger is implemented by backends with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BulkOverdueMarker is implemented by backends that can apply the overdue
// rule in a single statement.
type BulkOverdueMarker interface {
	MarkOverdue(ctx context.Context, today date.Date) (int, error)
}

// Error is a failed store operation.
type Error struct {
	Op        string
	ID        int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("store %s #%d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with the operation and classifies it with Classify.
// A nil err stays nil and an existing *Error is returned as is.
func Wrap(op string, id int, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, ID: id, Transient: Classify(err), Err: err}
}

// NotFound returns the error backends use for a missing task.
func NotFound(op string, id int) error {
	return &Error{Op: op, ID: id, Err: ErrNotFound}
}

// Unavailable returns a transient error wrapping cause.
func Unavailable(op string, cause error) error {
	return &Error{Op: op, Transient: true, Err: fmt.Errorf("%w: %w", ErrUnavailable, cause)}
}

// IsNotFound reports whether err means the task does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
