package digest

import (
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var today = date.New(2026, time.October, 19)

func mk(id int, st task.Status, priority int, due *date.Date) task.Task {
	t := task.New("t", priority)
	t.ID = id
	t.Status = st
	t.Due = due
	return t
}

func ids(tasks []task.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuild(t *testing.T) {
	tasks := []task.Task{
		mk(1, task.Active, 3, today.AddDays(-2).Ptr()),    // derived overdue
		mk(2, task.Overdue, 3, today.AddDays(-5).Ptr()),   // stored overdue
		mk(3, task.Active, 3, today.Ptr()),                // due today
		mk(4, task.Postponed, 1, today.Ptr()),             // due today, higher priority
		mk(5, task.Active, 3, today.AddDays(7).Ptr()),     // edge of horizon
		mk(6, task.Active, 3, today.AddDays(8).Ptr()),     // beyond horizon
		mk(7, task.Completed, 3, today.AddDays(-1).Ptr()), // ignored
		mk(8, task.Cancelled, 3, today.Ptr()),             // ignored
		mk(9, task.Active, 3, nil),                        // no due date
	}

	d := Build(tasks, today, DefaultHorizon)

	if got := ids(d.Overdue); !equal(got, []int{2, 1}) {
		t.Errorf("Overdue = %v, want [2 1]", got)
	}
	if got := ids(d.DueToday); !equal(got, []int{4, 3}) {
		t.Errorf("DueToday = %v, want [4 3]", got)
	}
	if got := ids(d.Upcoming); !equal(got, []int{5}) {
		t.Errorf("Upcoming = %v, want [5]", got)
	}
	if d.Empty() {
		t.Error("Empty() = true")
	}
}

func TestBuildEmpty(t *testing.T) {
	d := Build(nil, today, DefaultHorizon)
	if !d.Empty() {
		t.Errorf("Empty() = false for %+v", d)
	}
	if !d.Today.Equal(today) {
		t.Errorf("Today = %s", d.Today)
	}
}

func TestBuildNegativeHorizonUsesDefault(t *testing.T) {
	tasks := []task.Task{mk(1, task.Active, 3, today.AddDays(3).Ptr())}
	d := Build(tasks, today, -1)
	if len(d.Upcoming) != 1 {
		t.Errorf("Upcoming = %v", ids(d.Upcoming))
	}
}
