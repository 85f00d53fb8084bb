// Package board provides collection-level operations on tasks: filtering,
// sorting, grouping and summaries.
package board

import (
	"slices"
	"strings"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// FilterOptions defines which tasks to include.
type FilterOptions struct {
	Statuses        []task.Status
	ExcludeStatuses []task.Status // statuses to exclude from results
	Priorities      []int
	AssignedTo      string
	Type            string
	Search          string     // case-insensitive substring match across name, description and type
	DueBy           *date.Date // only tasks due on or before this date
}

// Filter returns tasks matching all specified criteria (AND logic).
func Filter(tasks []task.Task, opts FilterOptions) []task.Task {
	var result []task.Task
	for _, t := range tasks {
		if matchesFilter(&t, opts) {
			result = append(result, t)
		}
	}
	return result
}

func matchesFilter(t *task.Task, opts FilterOptions) bool {
	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, t.Status) {
		return false
	}
	if slices.Contains(opts.ExcludeStatuses, t.Status) {
		return false
	}
	if len(opts.Priorities) > 0 && !slices.Contains(opts.Priorities, t.Priority) {
		return false
	}
	if opts.AssignedTo != "" && !strings.EqualFold(t.AssignedTo, opts.AssignedTo) {
		return false
	}
	if opts.Type != "" && !strings.EqualFold(t.Type, opts.Type) {
		return false
	}
	if opts.DueBy != nil && (t.Due == nil || opts.DueBy.Before(*t.Due)) {
		return false
	}
	if opts.Search != "" && !matchesSearch(t, opts.Search) {
		return false
	}
	return true
}

// matchesSearch performs case-insensitive substring matching across name,
// description and type.
func matchesSearch(t *task.Task, query string) bool {
	q := strings.ToLower(query)
	for _, field := range []string{t.Name, t.Description, t.Type} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
