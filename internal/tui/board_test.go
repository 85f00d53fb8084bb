package tui

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var today = date.New(2026, time.October, 19)

func newTestBoard(t *testing.T, names ...string) (*Board, *store.Memory, *syncer.Coordinator) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	q, err := queue.Open(filepath.Join(t.TempDir(), "pending.jsonl"), queue.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	m := store.NewMemory()
	m.SetToday(func() date.Date { return today })
	for i, n := range names {
		tk := task.New(n, 3)
		tk.Due = today.AddDays(i).Ptr()
		if _, err := m.Add(context.Background(), tk); err != nil {
			t.Fatal(err)
		}
	}
	c := syncer.New(m, q, syncer.WithLogger(logger), syncer.WithToday(func() date.Date { return today }))
	b := NewBoard(c, "home", WithToday(func() date.Date { return today }))
	b.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return b, m, c
}

// settle runs cmd and feeds its message back into the board until no
// command remains.
func settle(t *testing.T, b *Board, cmd tea.Cmd) {
	t.Helper()
	for range 10 {
		if cmd == nil {
			return
		}
		msg := cmd()
		if _, ok := msg.(TickMsg); ok {
			return
		}
		_, cmd = b.Update(msg)
	}
	t.Fatal("board did not settle")
}

func press(t *testing.T, b *Board, keys string) {
	t.Helper()
	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	settle(t, b, cmd)
}

func TestBoardColumnsFollowStatuses(t *testing.T) {
	b, _, _ := newTestBoard(t, "Water plants", "Take out trash")
	settle(t, b, b.loadCmd())

	if len(b.columns) != len(task.Statuses) {
		t.Fatalf("columns = %d, want %d", len(b.columns), len(task.Statuses))
	}
	if b.columns[0].status != task.Active || len(b.columns[0].tasks) != 2 {
		t.Fatalf("first column = %s with %d tasks", b.columns[0].status, len(b.columns[0].tasks))
	}
	if got := b.columns[0].tasks[0].Name; got != "Water plants" {
		t.Errorf("soonest due first: got %q", got)
	}
}

func TestBoardCompleteMovesTask(t *testing.T) {
	b, m, _ := newTestBoard(t, "Water plants")
	settle(t, b, b.loadCmd())

	press(t, b, "c")

	got, err := m.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.Completed {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if b.notice != "#1 completed" {
		t.Errorf("notice = %q", b.notice)
	}
	if n := len(b.columns[0].tasks); n != 0 {
		t.Errorf("active column still has %d tasks", n)
	}
}

func TestBoardInvalidTransitionShowsError(t *testing.T) {
	b, m, _ := newTestBoard(t, "Water plants")
	if err := m.SetStatus(context.Background(), 1, task.Completed); err != nil {
		t.Fatal(err)
	}
	settle(t, b, b.loadCmd())

	for range 3 {
		press(t, b, "l")
	}
	if st := b.currentColumn().status; st != task.Completed {
		t.Fatalf("active column = %s", st)
	}
	press(t, b, "x")

	if b.err == nil {
		t.Fatal("expected error cancelling a completed task")
	}
	if !strings.Contains(b.View(), "Error:") {
		t.Error("error not rendered")
	}
}

func TestBoardDeleteNeedsConfirmation(t *testing.T) {
	b, m, _ := newTestBoard(t, "Water plants")
	settle(t, b, b.loadCmd())

	press(t, b, "d")
	if b.view != viewConfirmDelete {
		t.Fatal("expected confirmation dialog")
	}
	press(t, b, "n")
	if _, err := m.GetByID(context.Background(), 1); err != nil {
		t.Fatalf("task deleted without confirmation: %v", err)
	}

	press(t, b, "d")
	press(t, b, "y")
	if _, err := m.GetByID(context.Background(), 1); !store.IsNotFound(err) {
		t.Fatalf("GetByID after delete = %v, want not found", err)
	}
}

func TestBoardShowsPendingWhileOffline(t *testing.T) {
	b, m, c := newTestBoard(t)
	m.SetOffline(true)

	if _, err := c.Add(context.Background(), task.New("Descale kettle", 2)); err != nil {
		t.Fatal(err)
	}
	settle(t, b, b.loadCmd())

	if b.pending != 1 || !b.offline {
		t.Fatalf("pending = %d offline = %v", b.pending, b.offline)
	}
	view := b.View()
	for _, want := range []string{"pending: 1", "offline", "Descale kettle"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.SetOffline(false)
	press(t, b, "s")
	if b.pending != 0 {
		t.Errorf("pending after sync = %d", b.pending)
	}
	if !strings.HasPrefix(b.notice, "Synced 1") {
		t.Errorf("notice = %q", b.notice)
	}
}

func TestDueLabel(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-3, "3d late"},
		{0, "due today"},
		{1, "due tomorrow"},
		{5, "due in 5d"},
	}
	for _, tt := range tests {
		if got := dueLabel(today.AddDays(tt.days), today); got != tt.want {
			t.Errorf("dueLabel(%+d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("wipe the counters and the stove top", 12, 2)
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "wipe the" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "...") {
		t.Errorf("last line should be truncated: %q", lines[1])
	}
}
