// Package digest groups tasks into the daily summary shown by the today
// command.
package digest

import (
	"cmp"
	"slices"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// DefaultHorizon is how many days ahead Upcoming looks.
const DefaultHorizon = 7

// Digest is a snapshot of what needs attention.
type Digest struct {
	Today    date.Date   `json:"today"`
	Overdue  []task.Task `json:"overdue"`
	DueToday []task.Task `json:"due_today"`
	Upcoming []task.Task `json:"upcoming"`
}

// Empty reports whether nothing needs attention.
func (d Digest) Empty() bool {
	return len(d.Overdue) == 0 && len(d.DueToday) == 0 && len(d.Upcoming) == 0
}

// Build sorts open tasks into the digest buckets. Completed and cancelled
// tasks are ignored. A task counts as overdue when its stored status says
// so or when its due date has passed, so the digest is right even if the
// sweeper has not run yet.
func Build(tasks []task.Task, today date.Date, horizon int) Digest {
	if horizon < 0 {
		horizon = DefaultHorizon
	}
	d := Digest{Today: today}
	for _, t := range tasks {
		if t.Status == task.Completed || t.Status == task.Cancelled {
			continue
		}
		switch {
		case task.DeriveStatus(t.Status, t.Due, today) == task.Overdue:
			d.Overdue = append(d.Overdue, t)
		case t.Due == nil:
		case t.Due.Equal(today):
			d.DueToday = append(d.DueToday, t)
		case today.DaysUntil(*t.Due) <= horizon:
			d.Upcoming = append(d.Upcoming, t)
		}
	}
	sortByDue(d.Overdue)
	sortByDue(d.DueToday)
	sortByDue(d.Upcoming)
	return d
}

// sortByDue orders by due date, then priority (1 first), then ID. Tasks
// without a due date sort last.
func sortByDue(tasks []task.Task) {
	slices.SortStableFunc(tasks, func(a, b task.Task) int {
		switch {
		case a.Due == nil && b.Due != nil:
			return 1
		case a.Due != nil && b.Due == nil:
			return -1
		case a.Due != nil && b.Due != nil && !a.Due.Equal(*b.Due):
			if a.Due.Before(*b.Due) {
				return -1
			}
			return 1
		}
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.ID, b.ID))
	})
}
