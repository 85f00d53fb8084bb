package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/digest"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// TaskCompact renders a list of tasks in one-line-per-record compact format.
func TaskCompact(w io.Writer, tasks []task.Task, pendingIDs map[int]bool) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	for _, t := range tasks {
		fmt.Fprintln(w, formatTaskLine(&t, pendingIDs[t.ID]))
	}
}

// TaskDetailCompact renders a single task with detail in compact format.
func TaskDetailCompact(w io.Writer, t *task.Task, pending bool) {
	fmt.Fprintln(w, formatTaskLine(t, pending))

	var ts []string
	if !t.Created.IsZero() {
		ts = append(ts, "created:"+t.Created.Format("2006-01-02"))
	}
	if !t.Updated.IsZero() {
		ts = append(ts, "updated:"+t.Updated.Format("2006-01-02"))
	}
	if t.LastCompleted != nil {
		ts = append(ts, "last_completed:"+t.LastCompleted.String())
	}
	if len(ts) > 0 {
		fmt.Fprintln(w, "  "+strings.Join(ts, " "))
	}

	if t.Description != "" {
		for _, line := range strings.Split(t.Description, "\n") {
			fmt.Fprintln(w, "  "+line)
		}
	}
}

// OverviewCompact renders a household summary in compact format.
func OverviewCompact(w io.Writer, s board.Overview) {
	fmt.Fprintf(w, "%s (%d tasks, %d due soon, %d pending)\n", s.Name, s.TotalTasks, s.DueSoon, s.Pending)

	parts := make([]string, 0, len(s.Statuses))
	for _, ss := range s.Statuses {
		parts = append(parts, string(ss.Status)+"="+strconv.Itoa(ss.Count))
	}
	fmt.Fprintln(w, "Status: "+strings.Join(parts, " "))

	parts = parts[:0]
	for _, pc := range s.Priorities {
		parts = append(parts, strconv.Itoa(pc.Priority)+"="+strconv.Itoa(pc.Count))
	}
	fmt.Fprintln(w, "Priority: "+strings.Join(parts, " "))
}

// DigestCompact renders the daily summary one task per line, prefixed by
// its bucket.
func DigestCompact(w io.Writer, d digest.Digest, pendingIDs map[int]bool) {
	for _, b := range []struct {
		label string
		tasks []task.Task
	}{
		{"overdue", d.Overdue},
		{"today", d.DueToday},
		{"upcoming", d.Upcoming},
	} {
		for _, t := range b.tasks {
			fmt.Fprintln(w, b.label+" "+formatTaskLine(&t, pendingIDs[t.ID]))
		}
	}
}

// PendingCompact renders queued operations one per line.
func PendingCompact(w io.Writer, ops []queue.Op) {
	for _, op := range ops {
		fmt.Fprintln(w, op.QueuedAt.Format("2006-01-02T15:04:05")+" "+op.String())
	}
}

// ActivityCompact renders activity entries one per line.
func ActivityCompact(w io.Writer, entries []activity.Entry) {
	for _, e := range entries {
		line := e.Timestamp.Local().Format("2006-01-02T15:04:05") + " " + e.Action
		if e.TaskID != 0 {
			line += " #" + strconv.Itoa(e.TaskID)
		}
		if e.Detail != "" {
			line += " " + e.Detail
		}
		fmt.Fprintln(w, line)
	}
}

// formatTaskLine builds the one-line representation of a task.
func formatTaskLine(t *task.Task, pending bool) string {
	line := "#" + strconv.Itoa(t.ID)
	if pending {
		line += "*"
	}
	line += " [" + string(t.Status) + "/p" + strconv.Itoa(t.Priority) + "] " + t.Name

	if t.AssignedTo != "" {
		line += " @" + t.AssignedTo
	}
	if t.Type != "" {
		line += " (" + t.Type + ")"
	}
	if t.Due != nil {
		line += " due:" + t.Due.String()
	}

	return line
}
