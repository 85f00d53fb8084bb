package board

import (
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// StatusSummary holds the count for a single status.
type StatusSummary struct {
	Status task.Status `json:"status"`
	Count  int         `json:"count"`
}

// PriorityCount holds a count for a priority level.
type PriorityCount struct {
	Priority int `json:"priority"`
	Count    int `json:"count"`
}

// Overview is the aggregate household overview.
type Overview struct {
	Name       string          `json:"name"`
	TotalTasks int             `json:"total_tasks"`
	Statuses   []StatusSummary `json:"statuses"`
	Priorities []PriorityCount `json:"priorities"`
	// DueSoon counts open tasks due within the next seven days.
	DueSoon int  `json:"due_soon"`
	Pending int  `json:"pending"`
	Offline bool `json:"offline,omitempty"`
}

// Summary computes an overview from all tasks. pending is the number of
// operations waiting to be synced.
func Summary(name string, tasks []task.Task, today date.Date, pending int) Overview {
	const dueSoonDays = 7
	prio := make(map[int]int)
	dueSoon := 0
	for _, t := range tasks {
		prio[t.Priority]++
		if t.Due != nil && t.Status != task.Completed && t.Status != task.Cancelled {
			if n := today.DaysUntil(*t.Due); n >= 0 && n <= dueSoonDays {
				dueSoon++
			}
		}
	}

	priorities := make([]PriorityCount, 0, task.MaxPriority)
	for p := task.MinPriority; p <= task.MaxPriority; p++ {
		priorities = append(priorities, PriorityCount{Priority: p, Count: prio[p]})
	}

	return Overview{
		Name:       name,
		TotalTasks: len(tasks),
		Statuses:   statusSummary(tasks),
		Priorities: priorities,
		DueSoon:    dueSoon,
		Pending:    pending,
	}
}

// ParseIDs splits a comma-separated ID string into deduplicated int IDs.
// Provisional (negative) IDs are accepted.
func ParseIDs(arg string) ([]int, error) {
	parts := strings.Split(arg, ",")
	seen := make(map[int]bool, len(parts))
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil || id == 0 {
			return nil, task.ValidateTaskID(p)
		}
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	if len(ids) == 0 {
		return nil, clierr.New(clierr.InvalidTaskID, "no valid task IDs provided")
	}
	return ids, nil
}

// CountByStatus returns the number of tasks in each status.
func CountByStatus(tasks []task.Task) map[task.Status]int {
	counts := make(map[task.Status]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// statusSummary counts tasks per status in board column order.
func statusSummary(tasks []task.Task) []StatusSummary {
	counts := CountByStatus(tasks)
	statuses := make([]StatusSummary, 0, len(task.Statuses))
	for _, s := range task.Statuses {
		statuses = append(statuses, StatusSummary{Status: s, Count: counts[s]})
	}
	return statuses
}
