package sweeper

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var today = date.New(2026, time.October, 19)

func newSweeper(t *testing.T, opts ...Option) (*Sweeper, *store.Memory, *bytes.Buffer) {
	t.Helper()
	m := store.NewMemory()
	logs := &bytes.Buffer{}
	opts = append([]Option{
		WithLogger(log.New(logs, "", 0)),
		WithToday(func() date.Date { return today }),
	}, opts...)
	return New(m, opts...), m, logs
}

func add(t *testing.T, m *store.Memory, name string, st task.Status, due *date.Date) task.Task {
	t.Helper()
	tk := task.New(name, 3)
	tk.Status = st
	tk.Due = due
	added, err := m.Add(context.Background(), tk)
	if err != nil {
		t.Fatal(err)
	}
	return added
}

func TestRunOnceMarksPastDueTasks(t *testing.T) {
	ctx := context.Background()
	s, m, _ := newSweeper(t)

	late := add(t, m, "late", task.Active, today.AddDays(-1).Ptr())
	latePostponed := add(t, m, "late postponed", task.Postponed, today.AddDays(-5).Ptr())
	dueToday := add(t, m, "due today", task.Active, today.Ptr())
	done := add(t, m, "done", task.Completed, today.AddDays(-1).Ptr())
	noDue := add(t, m, "no due", task.Active, nil)

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Checked != 5 || res.Marked != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}

	want := map[int]task.Status{
		late.ID:          task.Overdue,
		latePostponed.ID: task.Overdue,
		dueToday.ID:      task.Active,
		done.ID:          task.Completed,
		noDue.ID:         task.Active,
	}
	for id, st := range want {
		got, _ := m.GetByID(ctx, id)
		if got.Status != st {
			t.Errorf("task %q status = %s, want %s", got.Name, got.Status, st)
		}
	}

	// A second run finds nothing new.
	res, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Marked != 0 {
		t.Errorf("second run marked %d", res.Marked)
	}
}

func TestRunOnceToleratesPerTaskFailures(t *testing.T) {
	ctx := context.Background()
	s, m, logs := newSweeper(t)

	a := add(t, m, "a", task.Active, today.AddDays(-1).Ptr())
	b := add(t, m, "b", task.Active, today.AddDays(-1).Ptr())
	c := add(t, m, "c", task.Active, today.AddDays(-1).Ptr())

	m.SetFault(func(op string, id int) error {
		if op == "set_status" && id == b.ID {
			return errors.New("constraint violation")
		}
		return nil
	})

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Marked != 2 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	m.SetFault(nil)
	for _, id := range []int{a.ID, c.ID} {
		got, _ := m.GetByID(ctx, id)
		if got.Status != task.Overdue {
			t.Errorf("task %d status = %s", id, got.Status)
		}
	}
	if !strings.Contains(logs.String(), "#2") {
		t.Errorf("expected failure to be logged, got %q", logs.String())
	}
}

// changingStore runs change after GetAll has taken its snapshot.
type changingStore struct {
	*store.Memory
	change func()
}

func (c changingStore) GetAll(ctx context.Context) ([]task.Task, error) {
	tasks, err := c.Memory.GetAll(ctx)
	c.change()
	return tasks, err
}

func TestRunOnceRechecksBeforeMarking(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	completed := add(t, m, "completed meanwhile", task.Active, today.AddDays(-2).Ptr())
	deleted := add(t, m, "deleted meanwhile", task.Active, today.AddDays(-2).Ptr())
	late := add(t, m, "still late", task.Active, today.AddDays(-2).Ptr())

	cs := changingStore{Memory: m, change: func() {
		if err := m.SetStatus(ctx, completed.ID, task.Completed); err != nil {
			t.Error(err)
		}
		if err := m.Delete(ctx, deleted.ID); err != nil {
			t.Error(err)
		}
	}}
	s := New(cs, WithLogger(log.New(&bytes.Buffer{}, "", 0)), WithToday(func() date.Date { return today }))

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Marked != 1 || res.Failed != 0 || len(res.MarkedIDs) != 1 || res.MarkedIDs[0] != late.ID {
		t.Errorf("result = %+v", res)
	}
	if got, _ := m.GetByID(ctx, completed.ID); got.Status != task.Completed {
		t.Errorf("completed task swept to %s", got.Status)
	}
}

func TestRunOnceSkipsWhenStoreUnreachable(t *testing.T) {
	s, m, logs := newSweeper(t)
	add(t, m, "late", task.Active, today.AddDays(-1).Ptr())
	m.SetOffline(true)

	_, err := s.RunOnce(context.Background())
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("err = %v, want ErrSkipped", err)
	}

	s.runLogged(context.Background())
	if logs.Len() != 0 {
		t.Errorf("skipped run should be silent, got %q", logs.String())
	}
}

func TestRunOncePermanentLoadFailure(t *testing.T) {
	s, m, _ := newSweeper(t)
	m.SetFault(func(op string, _ int) error {
		if op == "get_all" {
			return errors.New("permission denied")
		}
		return nil
	})
	_, err := s.RunOnce(context.Background())
	if err == nil || errors.Is(err, ErrSkipped) {
		t.Fatalf("err = %v, want permanent failure", err)
	}
}

func TestRunSweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	s, m, _ := newSweeper(t, WithInterval(time.Hour))
	add(t, m, "late", task.Active, today.AddDays(-1).Ptr())

	var mu sync.Mutex
	var runs []Result
	first := make(chan struct{})
	s.OnSweep = func(res Result, _ error) {
		mu.Lock()
		defer mu.Unlock()
		runs = append(runs, res)
		if len(runs) == 1 {
			close(first)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate sweep")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(runs) != 1 || runs[0].Marked != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunRepeatsOnInterval(t *testing.T) {
	s, _, _ := newSweeper(t, WithInterval(10*time.Millisecond))

	var mu sync.Mutex
	count := 0
	enough := make(chan struct{})
	s.OnSweep = func(Result, error) {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count == 3 {
			close(enough)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-enough:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not repeat")
	}
}

func TestRunOnceBulk(t *testing.T) {
	ctx := context.Background()
	s, m, _ := newSweeper(t, WithBulk())

	late := add(t, m, "late", task.Active, today.AddDays(-2).Ptr())
	add(t, m, "later", task.Active, today.AddDays(2).Ptr())

	res, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Marked != 1 || len(res.MarkedIDs) != 0 {
		t.Errorf("result = %+v", res)
	}
	got, err := m.GetByID(ctx, late.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.Overdue {
		t.Errorf("status = %s, want overdue", got.Status)
	}

	m.SetOffline(true)
	if _, err := s.RunOnce(ctx); !errors.Is(err, ErrSkipped) {
		t.Errorf("offline bulk sweep err = %v, want ErrSkipped", err)
	}
}
