package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/digest"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// Status colors aligned with TUI column-header palette.
	statusStyles = map[string]lipgloss.Style{
		string(task.Active):    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		string(task.Overdue):   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		string(task.Postponed): lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		string(task.Completed): lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		string(task.Cancelled): lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}

	// Priority colors matching TUI priority palette, 1 being the most urgent.
	priorityStyles = map[string]lipgloss.Style{
		"1": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		"2": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"3": lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		"4": lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		"5": lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	assigneeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("44")).Bold(true)
)

// DisableColor strips all styling from table output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	pendingStyle = lipgloss.NewStyle()
	statusStyles = map[string]lipgloss.Style{}
	priorityStyles = map[string]lipgloss.Style{}
	assigneeStyle = lipgloss.NewStyle()
}

// ColorEnabled reports whether the output profile renders any color.
func ColorEnabled() bool {
	return lipgloss.ColorProfile() != termenv.Ascii
}

// TaskTable renders a list of tasks as a formatted table. Tasks with queued
// writes are marked with an asterisk after their ID.
func TaskTable(w io.Writer, tasks []task.Task, pendingIDs map[int]bool) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	// Calculate column widths.
	const pad = 2
	idW, statusW, prioW, nameW, whoW, typeW, dueW := 4, 8, 5, 6, 10, 6, 12
	for _, t := range tasks {
		idW = max(idW, len(idDisplay(t.ID, pendingIDs))+pad)
		statusW = max(statusW, len(t.Status)+pad)
		nameW = max(nameW, min(len(t.Name)+pad, 50)) //nolint:mnd // max name column width
		whoW = max(whoW, len(t.AssignedTo)+pad)
		typeW = max(typeW, min(len(t.Type)+pad, 20)) //nolint:mnd // max type column width
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %-*s %-*s",
		idW, "ID", statusW, "STATUS", prioW, "PRIO",
		nameW, "NAME", whoW, "ASSIGNED", typeW, "TYPE", dueW, "DUE")
	fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(header, " ")))

	for _, t := range tasks {
		name := truncate(t.Name, 48) //nolint:mnd // leaves room for padding in a 50-wide column
		who := t.AssignedTo
		if who == "" {
			who = dimStyle.Render("--")
		} else {
			who = assigneeStyle.Render(who)
		}
		typ := truncate(t.Type, 18) //nolint:mnd // fits the 20-wide type column
		if typ == "" {
			typ = dimStyle.Render("--")
		}

		id := idDisplay(t.ID, pendingIDs)
		if pendingIDs[t.ID] {
			id = pendingStyle.Render(id)
		}

		row := fmt.Sprintf("%s %s %s %s %s %s %s",
			padRight(id, idW),
			padRight(styledValue(string(t.Status), statusStyles), statusW),
			padRight(styledValue(strconv.Itoa(t.Priority), priorityStyles), prioW),
			padRight(name, nameW),
			padRight(who, whoW),
			padRight(typ, typeW),
			dueDisplay(t.Due))
		fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}

// PendingIndicator prints the "pending: N" line shown under task lists when
// writes are waiting to be synced.
func PendingIndicator(w io.Writer, pending int, offline bool) {
	if pending == 0 && !offline {
		return
	}
	line := "pending: " + strconv.Itoa(pending)
	if offline {
		line += " (store unreachable, showing local view)"
	}
	fmt.Fprintln(w, pendingStyle.Render(line))
}

// TaskDetail renders a single task with full detail. description is the
// already rendered description body, or empty.
func TaskDetail(w io.Writer, t *task.Task, pending bool, description string) {
	titleLine := fmt.Sprintf("Task #%d: %s", t.ID, t.Name)
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(titleLine))
	fmt.Fprintln(w, strings.Repeat("─", lipgloss.Width(titleLine)))

	printField(w, "Status", styledValue(string(t.Status), statusStyles))
	printField(w, "Priority", styledValue(strconv.Itoa(t.Priority), priorityStyles))
	printField(w, "Due", dueDisplay(t.Due))
	printField(w, "Assigned to", stringOrDash(t.AssignedTo))
	printField(w, "Type", stringOrDash(t.Type))
	if t.LastCompleted != nil {
		printField(w, "Last done", t.LastCompleted.String())
	} else {
		printField(w, "Last done", dimStyle.Render("--"))
	}
	if !t.Created.IsZero() {
		printField(w, "Created", t.Created.Format("2006-01-02 15:04"))
	}
	if !t.Updated.IsZero() {
		printField(w, "Updated", t.Updated.Format("2006-01-02 15:04"))
	}
	if t.IsProvisional() {
		printField(w, "Sync", pendingStyle.Render("not yet saved to the store"))
	} else if pending {
		printField(w, "Sync", pendingStyle.Render("changes waiting to sync"))
	}

	if description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.TrimRight(description, "\n"))
	}
}

// OverviewTable renders a household summary as a formatted dashboard.
func OverviewTable(w io.Writer, s board.Overview) {
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(s.Name))
	fmt.Fprintf(w, "Total: %d tasks, %d due within a week\n", s.TotalTasks, s.DueSoon)
	PendingIndicator(w, s.Pending, s.Offline)
	fmt.Fprintln(w)

	const colW = 16
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-16s %6s", "STATUS", "COUNT")))
	for _, ss := range s.Statuses {
		fmt.Fprintf(w, "%s %6d\n", padRight(styledValue(string(ss.Status), statusStyles), colW), ss.Count)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-16s %6s", "PRIORITY", "COUNT")))
	for _, pc := range s.Priorities {
		fmt.Fprintf(w, "%s %6d\n",
			padRight(styledValue(strconv.Itoa(pc.Priority), priorityStyles), colW), pc.Count)
	}
}

// GroupedTable renders a grouped view with per-group status breakdowns.
func GroupedTable(w io.Writer, gs board.GroupedSummary) {
	if len(gs.Groups) == 0 {
		fmt.Fprintln(os.Stderr, "No groups found.")
		return
	}

	for i, g := range gs.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := fmt.Sprintf("%s (%d tasks)", g.Key, g.Total)
		fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render(title))

		for _, ss := range g.Statuses {
			if ss.Count == 0 {
				continue
			}
			const groupStatusW = 16
			fmt.Fprintf(w, "  %s %d\n",
				padRight(styledValue(string(ss.Status), statusStyles), groupStatusW), ss.Count)
		}
	}
}

// DigestTable renders the daily summary.
func DigestTable(w io.Writer, d digest.Digest, pendingIDs map[int]bool) {
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render("Today, "+d.Today.Format("Mon Jan 2")))
	if d.Empty() {
		fmt.Fprintln(w, "Nothing due. Enjoy the day.")
		return
	}
	sections := []struct {
		title string
		tasks []task.Task
	}{
		{"Overdue", d.Overdue},
		{"Due today", d.DueToday},
		{"Coming up", d.Upcoming},
	}
	for _, s := range sections {
		if len(s.tasks) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", s.title, len(s.tasks))))
		const idW, dueW = 6, 12
		for _, t := range s.tasks {
			fmt.Fprintf(w, "  %s %s %s\n",
				padRight(idDisplay(t.ID, pendingIDs), idW),
				padRight(dueRelative(t.Due, d.Today), dueW),
				t.Name+assigneeSuffix(t.AssignedTo))
		}
	}
}

// PendingTable lists queued operations oldest first.
func PendingTable(w io.Writer, ops []queue.Op, now time.Time) {
	if len(ops) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing waiting to sync.")
		return
	}
	header := fmt.Sprintf("%-4s %-8s %-8s %-10s %s", "#", "KIND", "TASK", "AGE", "DETAIL")
	fmt.Fprintln(w, headerStyle.Render(header))
	for i, op := range ops {
		fmt.Fprintf(w, "%-4d %-8s %-8s %-10s %s\n",
			i+1, op.Kind, "#"+strconv.Itoa(op.TaskID()),
			FormatDuration(now.Sub(op.QueuedAt)), opDetail(op))
	}
}

// DrainSummary reports the outcome of a sync pass.
func DrainSummary(w io.Writer, res syncer.DrainResult) {
	switch {
	case res.Applied == 0 && res.Remaining == 0:
		fmt.Fprintln(w, "Nothing to sync.")
		return
	case res.Remaining == 0:
		fmt.Fprintf(w, "Synced %d pending change(s).\n", res.Applied)
	default:
		fmt.Fprintf(w, "Synced %d pending change(s), %d still waiting.\n", res.Applied, res.Remaining)
	}
	for provisional, id := range res.Remapped {
		fmt.Fprintf(w, "  task #%d is now #%d\n", provisional, id)
	}
	if res.Failed != nil {
		fmt.Fprintln(w, pendingStyle.Render("Stopped at: "+res.Failed.String()))
	}
}

// ActivityTable renders activity log entries.
func ActivityTable(w io.Writer, entries []activity.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No activity recorded.")
		return
	}
	header := fmt.Sprintf("%-16s %-8s %-6s %s", "TIME", "ACTION", "TASK", "DETAIL")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, e := range entries {
		id := dimStyle.Render("--")
		if e.TaskID != 0 {
			id = "#" + strconv.Itoa(e.TaskID)
		}
		const taskW = 6
		fmt.Fprintf(w, "%-16s %-8s %s %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.Action, padRight(id, taskW), e.Detail)
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}

// Queuedf prints a message for a write that was queued instead of applied.
func Queuedf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, fmt.Sprintf(format, args...)+" "+pendingStyle.Render("(queued for sync)"))
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

// FormatDuration renders a duration as human-readable "Xd Yh" or "Xh Ym".
func FormatDuration(d time.Duration) string {
	const hoursPerDay = 24
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if days > 0 {
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h"
	}
	minutes := int(d.Minutes()) % 60 //nolint:mnd // 60 minutes per hour
	return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
}

// padRight pads s with spaces to the given visible width, accounting for ANSI
// escape codes that are invisible but consume bytes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func stringOrDash(s string) string {
	if s == "" {
		return dimStyle.Render("--")
	}
	return s
}

func idDisplay(id int, pendingIDs map[int]bool) string {
	s := strconv.Itoa(id)
	if pendingIDs[id] {
		s += "*"
	}
	return s
}

func dueDisplay(due *date.Date) string {
	if due == nil {
		return dimStyle.Render("--")
	}
	return due.String()
}

// dueRelative renders a due date relative to today: "3d late", "today",
// "in 2d".
func dueRelative(due *date.Date, today date.Date) string {
	if due == nil {
		return "--"
	}
	switch n := today.DaysUntil(*due); {
	case n < 0:
		return strconv.Itoa(-n) + "d late"
	case n == 0:
		return "today"
	default:
		return "in " + strconv.Itoa(n) + "d"
	}
}

func assigneeSuffix(who string) string {
	if who == "" {
		return ""
	}
	return " " + assigneeStyle.Render("@"+who)
}

func opDetail(op queue.Op) string {
	switch op.Kind {
	case queue.KindStatus:
		return "-> " + string(op.Status)
	case queue.KindDelete:
		return ""
	default:
		return strconv.Quote(op.Task.Name)
	}
}

// styledValue renders s using a matching style from the map, or returns s unchanged.
func styledValue(s string, styles map[string]lipgloss.Style) string {
	if st, ok := styles[s]; ok {
		return st.Render(s)
	}
	return s
}
