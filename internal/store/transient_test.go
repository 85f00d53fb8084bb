package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

func TestIsTransient(t *testing.T) {
	validation := task.Validate(&task.Task{Name: "", Priority: 3, Status: task.Active})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", NotFound("get", 4), false},
		{"bare not found", ErrNotFound, false},
		{"validation", validation, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"econnrefused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"dns", &net.DNSError{Err: "no such host", Name: "db"}, true},
		{"message refused", errors.New("dial tcp 10.0.0.1:5432: Connection Refused"), true},
		{"message timeout", errors.New("i/o Timeout while reading"), true},
		{"constraint", errors.New(`duplicate key value violates unique constraint "tasks_pkey"`), false},
		{"flagged transient", &Error{Op: "add", Transient: true, Err: errors.New("boom")}, true},
		{"flagged permanent wins over message", &Error{Op: "add", Err: errors.New("connection lost")}, false},
		{"wrapped flagged", fmt.Errorf("sync: %w", Unavailable("get_all", errors.New("down"))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapClassifiesOnce(t *testing.T) {
	err := Wrap("update", 3, syscall.ECONNREFUSED)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("Wrap returned %T", err)
	}
	if !se.Transient || se.Op != "update" || se.ID != 3 {
		t.Errorf("got %+v", se)
	}
	if again := Wrap("other", 9, err); again != err {
		t.Error("Wrap must not re-wrap a store error")
	}
	if Wrap("x", 0, nil) != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestErrorMessage(t *testing.T) {
	if got := NotFound("get", 12).Error(); got != "store get #12: task not found" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&Error{Op: "get_all", Err: errors.New("x")}).Error(); got != "store get_all: x" {
		t.Errorf("Error() = %q", got)
	}
}
