package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// Fault decides whether an operation on a Memory store fails. It receives the
// operation name ("get_all", "get", "add", "update", "delete", "set_status",
// "ping") and the task ID (0 when not applicable).
type Fault func(op string, id int) error

// Memory is an in-process TaskStore. It backs the "memory" backend and is the
// reference implementation used in tests, where faults can be injected.
type Memory struct {
	mu     sync.Mutex
	tasks  map[int]task.Task
	nextID int
	fault  Fault
	today  func() date.Date
	now    func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:  make(map[int]task.Task),
		nextID: 1,
		today:  date.Today,
		now:    time.Now,
	}
}

// SetFault installs f; nil removes any fault.
func (m *Memory) SetFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

// SetOffline makes every operation fail with a transient error until called
// with false.
func (m *Memory) SetOffline(offline bool) {
	if !offline {
		m.SetFault(nil)
		return
	}
	m.SetFault(func(op string, _ int) error {
		return Unavailable(op, errors.New("connection refused"))
	})
}

// SetToday overrides the clock used for last-completed dates.
func (m *Memory) SetToday(fn func() date.Date) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.today = fn
}

func (m *Memory) check(op string, id int) error {
	if m.fault == nil {
		return nil
	}
	return Wrap(op, id, m.fault(op, id))
}

// Ping implements Pinger.
func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check("ping", 0)
}

// GetAll returns all tasks ordered by ID.
func (m *Memory) GetAll(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get_all", 0); err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b task.Task) int { return a.ID - b.ID })
	return out, nil
}

// GetByID returns a copy of the task.
func (m *Memory) GetByID(_ context.Context, id int) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get", id); err != nil {
		return nil, err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, NotFound("get", id)
	}
	return &t, nil
}

// Add assigns the next ID and stores t.
func (m *Memory) Add(_ context.Context, t task.Task) (task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("add", t.ID); err != nil {
		return task.Task{}, err
	}
	if err := task.Validate(&t); err != nil {
		return task.Task{}, err
	}
	t.ID = m.nextID
	m.nextID++
	task.UpdateTimestamps(&t, m.now())
	m.tasks[t.ID] = t
	return t, nil
}

// Update replaces an existing task.
func (m *Memory) Update(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update", t.ID); err != nil {
		return err
	}
	if err := task.Validate(&t); err != nil {
		return err
	}
	old, ok := m.tasks[t.ID]
	if !ok {
		return NotFound("update", t.ID)
	}
	t.Created = old.Created
	task.UpdateTimestamps(&t, m.now())
	m.tasks[t.ID] = t
	return nil
}

// Delete removes a task.
func (m *Memory) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", id); err != nil {
		return err
	}
	if _, ok := m.tasks[id]; !ok {
		return NotFound("delete", id)
	}
	delete(m.tasks, id)
	return nil
}

// SetStatus writes s without consulting the transition guard.
func (m *Memory) SetStatus(_ context.Context, id int, s task.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("set_status", id); err != nil {
		return err
	}
	t, ok := m.tasks[id]
	if !ok {
		return NotFound("set_status", id)
	}
	if s == task.Completed && t.Status != task.Completed {
		t.LastCompleted = m.today().Ptr()
	}
	t.Status = s
	task.UpdateTimestamps(&t, m.now())
	m.tasks[id] = t
	return nil
}

// MarkOverdue implements BulkOverdueMarker.
func (m *Memory) MarkOverdue(_ context.Context, today date.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("mark_overdue", 0); err != nil {
		return 0, err
	}
	n := 0
	for id, t := range m.tasks {
		if t.IsOverdue(today) {
			t.Status = task.Overdue
			task.UpdateTimestamps(&t, m.now())
			m.tasks[id] = t
			n++
		}
	}
	return n, nil
}
