package task

import (
	"strings"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	Active    Status = "active"
	Completed Status = "completed"
	Postponed Status = "postponed"
	Cancelled Status = "cancelled"
	Overdue   Status = "overdue"
)

// Statuses lists every status in board column order.
var Statuses = []Status{Active, Overdue, Postponed, Completed, Cancelled}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.IsValid() {
		return st, nil
	}
	return "", clierr.Newf(clierr.InvalidStatus, "invalid status %q", s).
		WithDetails(map[string]any{
			"status":  s,
			"allowed": StatusNames(),
		})
}

// StatusNames returns the status names as plain strings.
func StatusNames() []string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return names
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case Active, Completed, Postponed, Cancelled, Overdue:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

// IsAllowed is the transition guard. A cancelled task cannot be completed
// and a completed task cannot be cancelled; every other move is legal.
// Callers treat cur == next as a no-op and never ask.
func IsAllowed(cur, next Status) bool {
	switch next {
	case Completed:
		return cur != Cancelled
	case Cancelled:
		return cur != Completed
	default:
		return true
	}
}

// DeriveStatus applies the overdue rule: an active or postponed task whose
// due date is strictly before today is overdue. Any other input is returned
// unchanged.
func DeriveStatus(cur Status, due *date.Date, today date.Date) Status {
	if (cur == Active || cur == Postponed) && due != nil && due.Before(today) {
		return Overdue
	}
	return cur
}

// IsOverdue reports whether the overdue rule fires for t on the given day.
func (t *Task) IsOverdue(today date.Date) bool {
	return DeriveStatus(t.Status, t.Due, today) == Overdue && t.Status != Overdue
}
