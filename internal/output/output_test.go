package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/digest"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var today = date.New(2026, time.October, 19)

func init() {
	DisableColor()
}

func sampleTask() task.Task {
	t := task.New("Water plants", 2)
	t.ID = 7
	t.Due = today.Ptr()
	t.AssignedTo = "alex"
	t.Type = "garden"
	return t
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name                string
		jsonF, table, compt bool
		env                 string
		want                Format
	}{
		{"default", false, false, false, "", FormatTable},
		{"json flag", true, false, false, "", FormatJSON},
		{"compact flag beats env", false, false, true, "json", FormatCompact},
		{"env json", false, false, false, "json", FormatJSON},
		{"env oneline", false, false, false, "oneline", FormatCompact},
		{"env case and spaces", false, false, false, " JSON ", FormatJSON},
		{"unknown env", false, false, false, "yaml", FormatTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOutput, tt.env)
			if got := Detect(tt.jsonF, tt.table, tt.compt); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskTableMarksPending(t *testing.T) {
	var buf bytes.Buffer
	TaskTable(&buf, []task.Task{sampleTask()}, map[int]bool{7: true})
	out := buf.String()
	for _, want := range []string{"ID", "STATUS", "7*", "active", "Water plants", "alex", "garden", "2026-10-19"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatTaskLine(t *testing.T) {
	tk := sampleTask()
	got := formatTaskLine(&tk, true)
	want := "#7* [active/p2] Water plants @alex (garden) due:2026-10-19"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestPendingIndicator(t *testing.T) {
	var buf bytes.Buffer
	PendingIndicator(&buf, 0, false)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	PendingIndicator(&buf, 3, true)
	if !strings.Contains(buf.String(), "pending: 3") || !strings.Contains(buf.String(), "unreachable") {
		t.Errorf("got %q", buf.String())
	}
}

func TestDigestTable(t *testing.T) {
	late := sampleTask()
	late.ID = 1
	late.Due = today.AddDays(-2).Ptr()
	soon := sampleTask()
	soon.ID = 2
	soon.Due = today.AddDays(3).Ptr()

	d := digest.Build([]task.Task{late, soon}, today, digest.DefaultHorizon)
	var buf bytes.Buffer
	DigestTable(&buf, d, nil)
	out := buf.String()
	for _, want := range []string{"Overdue (1)", "2d late", "Coming up (1)", "in 3d", "@alex"} {
		if !strings.Contains(out, want) {
			t.Errorf("digest missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Due today") {
		t.Errorf("empty section rendered:\n%s", out)
	}

	buf.Reset()
	DigestTable(&buf, digest.Build(nil, today, digest.DefaultHorizon), nil)
	if !strings.Contains(buf.String(), "Nothing due") {
		t.Errorf("got %q", buf.String())
	}
}

func TestDrainSummary(t *testing.T) {
	failed := queue.Op{Kind: queue.KindStatus, Task: task.Task{ID: 4}, Status: task.Completed}
	var buf bytes.Buffer
	DrainSummary(&buf, syncer.DrainResult{Applied: 2, Remaining: 1, Failed: &failed, Remapped: map[int]int{-1: 12}})
	out := buf.String()
	for _, want := range []string{"Synced 2", "1 still waiting", "#-1 is now #12", "status #4 -> completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	DrainSummary(&buf, syncer.DrainResult{})
	if strings.TrimSpace(buf.String()) != "Nothing to sync." {
		t.Errorf("got %q", buf.String())
	}
}

func TestPendingTable(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ops := []queue.Op{
		{Kind: queue.KindAdd, Task: task.Task{ID: -1, Name: "Dust shelves"}, QueuedAt: now.Add(-90 * time.Minute)},
		{Kind: queue.KindDelete, Task: task.Task{ID: 3}, QueuedAt: now.Add(-26 * time.Hour)},
	}
	var buf bytes.Buffer
	PendingTable(&buf, ops, now)
	out := buf.String()
	for _, want := range []string{"#-1", `"Dust shelves"`, "1h 30m", "delete", "1d 2h"} {
		if !strings.Contains(out, want) {
			t.Errorf("pending table missing %q:\n%s", want, out)
		}
	}
}

func TestOverviewCompact(t *testing.T) {
	ov := board.Summary("home", []task.Task{sampleTask()}, today, 1)
	var buf bytes.Buffer
	OverviewCompact(&buf, ov)
	out := buf.String()
	if !strings.Contains(out, "home (1 tasks, 1 due soon, 1 pending)") || !strings.Contains(out, "active=1") {
		t.Errorf("got:\n%s", out)
	}
}

func TestActivityCompact(t *testing.T) {
	var buf bytes.Buffer
	ActivityCompact(&buf, []activity.Entry{
		{Timestamp: time.Now(), Action: activity.ActionSweep, Detail: "2 marked overdue"},
		{Timestamp: time.Now(), Action: activity.ActionAdd, TaskID: 5, Detail: "Water plants"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "sweep 2 marked overdue") || !strings.HasSuffix(lines[1], "add #5 Water plants") {
		t.Errorf("got:\n%s", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(49 * time.Hour); got != "2d 1h" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(75 * time.Minute); got != "1h 15m" {
		t.Errorf("got %q", got)
	}
}

func TestResultForAndTally(t *testing.T) {
	done := sampleTask()
	done.Status = task.Completed
	results := []TaskResult{
		ResultFor(7, syncer.Outcome{Task: done}, nil),
		ResultFor(-1, syncer.Outcome{Task: done, Queued: true}, nil),
		ResultFor(9, syncer.Outcome{}, clierr.Newf(clierr.TaskNotFound, "task #%d not found", 9)),
	}
	if r := results[0]; !r.OK || r.Queued || r.Status != "completed" {
		t.Errorf("applied result = %+v", r)
	}
	if r := results[2]; r.OK || r.Code != clierr.TaskNotFound || r.Error != "task #9 not found" {
		t.Errorf("failed result = %+v", r)
	}
	if ok, queued := Tally(results); ok != 2 || queued != 1 {
		t.Errorf("Tally = %d, %d; want 2, 1", ok, queued)
	}
}

func TestJSONErrorFallsBackToInternal(t *testing.T) {
	var buf bytes.Buffer
	JSONError(&buf, errors.New("disk on fire"))
	if !strings.Contains(buf.String(), `"code": "INTERNAL_ERROR"`) {
		t.Errorf("got %s", buf.String())
	}

	buf.Reset()
	JSONError(&buf, clierr.New(clierr.InvalidInput, "bad").WithDetails(map[string]any{"field": "days"}))
	for _, want := range []string{`"code": "INVALID_INPUT"`, `"field": "days"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %s in %s", want, buf.String())
		}
	}
}
