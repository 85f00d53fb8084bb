package task

import (
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
)

// SetStatus moves t to next through the transition guard.
//   - Same status is a no-op.
//   - A disallowed move returns INVALID_TRANSITION and leaves t untouched.
//   - Entering Completed records today as LastCompleted.
func (t *Task) SetStatus(next Status, today date.Date) error {
	if !next.IsValid() {
		_, err := ParseStatus(string(next))
		return err
	}
	if t.Status == next {
		return nil
	}
	if !IsAllowed(t.Status, next) {
		return clierr.Newf(clierr.InvalidTransition,
			"task #%d cannot move from %s to %s", t.ID, t.Status, next).
			WithDetails(map[string]any{
				"id":   t.ID,
				"from": string(t.Status),
				"to":   string(next),
			})
	}
	if next == Completed {
		t.LastCompleted = today.Ptr()
	}
	t.Status = next
	return nil
}

// Complete marks t as done today.
func (t *Task) Complete(today date.Date) error {
	return t.SetStatus(Completed, today)
}

// Cancel marks t as cancelled.
func (t *Task) Cancel(today date.Date) error {
	return t.SetStatus(Cancelled, today)
}

// Reactivate returns t to Active. Every status may be reactivated.
func (t *Task) Reactivate(today date.Date) error {
	return t.SetStatus(Active, today)
}

// Postpone shifts the due date by days and marks t as postponed.
// Completed and cancelled tasks cannot be postponed; postponing a postponed
// task shifts it again. A task without a due date only changes status.
func (t *Task) Postpone(days int, today date.Date) error {
	if t.Status == Completed || t.Status == Cancelled {
		return clierr.Newf(clierr.InvalidOperation,
			"task #%d is %s; completed or cancelled tasks cannot be postponed", t.ID, t.Status).
			WithDetails(map[string]any{
				"id":     t.ID,
				"status": string(t.Status),
			})
	}
	if days < 1 {
		return clierr.Newf(clierr.InvalidOperation, "postpone days must be positive, got %d", days).
			WithDetails(map[string]any{"days": days})
	}
	if err := t.SetStatus(Postponed, today); err != nil {
		return err
	}
	if t.Due != nil {
		t.Due = t.Due.AddDays(days).Ptr()
	}
	return nil
}

// UpdateTimestamps sets Created on first save and bumps Updated.
func UpdateTimestamps(t *Task, now time.Time) {
	if t.Created.IsZero() {
		t.Created = now
	}
	t.Updated = now
}
