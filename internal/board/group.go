package board

import (
	"slices"
	"sort"
	"strconv"

	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

const (
	fieldPriority = "priority"
	fieldStatus   = "status"
)

// GroupedSummary holds tasks grouped by a field.
type GroupedSummary struct {
	Groups []GroupSummary `json:"groups"`
}

// GroupSummary is one group within a grouped view.
type GroupSummary struct {
	Key      string          `json:"key"`
	Statuses []StatusSummary `json:"statuses"`
	Total    int             `json:"total"`
}

// GroupBy groups tasks by the specified field and returns summaries per group.
func GroupBy(tasks []task.Task, field string) GroupedSummary {
	groups := make(map[string][]task.Task)
	for _, t := range tasks {
		key := groupKey(&t, field)
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sortGroupKeys(keys, field)

	result := GroupedSummary{Groups: make([]GroupSummary, 0, len(keys))}
	for _, key := range keys {
		result.Groups = append(result.Groups, GroupSummary{
			Key:      key,
			Statuses: statusSummary(groups[key]),
			Total:    len(groups[key]),
		})
	}
	return result
}

func groupKey(t *task.Task, field string) string {
	switch field {
	case "assigned_to":
		if t.AssignedTo == "" {
			return "(unassigned)"
		}
		return t.AssignedTo
	case "type":
		if t.Type == "" {
			return "(untyped)"
		}
		return t.Type
	case fieldPriority:
		return strconv.Itoa(t.Priority)
	case fieldStatus:
		return string(t.Status)
	default:
		return "(all)"
	}
}

func sortGroupKeys(keys []string, field string) {
	switch field {
	case fieldStatus:
		sort.SliceStable(keys, func(i, j int) bool {
			return slices.Index(task.Statuses, task.Status(keys[i])) <
				slices.Index(task.Statuses, task.Status(keys[j]))
		})
	default:
		// Priorities are single digits, so lexical order is numeric order.
		sort.Strings(keys)
	}
}

// ValidGroupByFields returns the list of valid --group-by field names.
func ValidGroupByFields() []string {
	return []string{"assigned_to", "type", "priority", "status"}
}
