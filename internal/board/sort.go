package board

import (
	"slices"

	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// SortFields lists the accepted --sort values.
var SortFields = []string{"id", "name", "status", "priority", "due", "created", "updated"}

// Sort sorts tasks by the given field. Status uses the lifecycle order,
// priority sorts 1 (most important) first and tasks without a due date sort
// last.
func Sort(tasks []task.Task, field string, reverse bool) {
	slices.SortStableFunc(tasks, func(a, b task.Task) int {
		c := compareTasks(&a, &b, field)
		if reverse {
			return -c
		}
		return c
	})
}

func compareTasks(a, b *task.Task, field string) int {
	switch field {
	case "name":
		return compare(a.Name < b.Name, a.Name > b.Name)
	case fieldStatus:
		return slices.Index(task.Statuses, a.Status) - slices.Index(task.Statuses, b.Status)
	case fieldPriority:
		return a.Priority - b.Priority
	case "created":
		return a.Created.Compare(b.Created)
	case "updated":
		return a.Updated.Compare(b.Updated)
	case "due":
		return compareDue(a, b)
	default:
		return a.ID - b.ID
	}
}

func compareDue(a, b *task.Task) int {
	switch {
	case a.Due == nil && b.Due == nil:
		return 0
	case a.Due == nil:
		return 1 // nil sorts last
	case b.Due == nil:
		return -1
	}
	return compare(a.Due.Before(*b.Due), b.Due.Before(*a.Due))
}

func compare(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
