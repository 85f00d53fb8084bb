package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// transientPatterns are matched case-insensitively against error messages
// from drivers that do not expose typed errors.
var transientPatterns = []string{
	"connection",
	"refused",
	"timeout",
	"timed out",
	"unavailable",
}

// IsTransient reports whether err is a connectivity failure that is expected
// to clear by itself. It is the only predicate deciding whether a write is
// queued, and the sweeper uses it to decide whether to skip a run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Transient
	}
	return Classify(err)
}

// Classify inspects an unclassified error. Backends call it through Wrap and
// add their own driver-specific checks before falling back to it.
func Classify(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), task.IsValidationError(err):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
