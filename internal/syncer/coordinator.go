// Package syncer routes task writes to the store and diverts them into the
// pending queue when the store is unreachable. Drain replays the queue in
// order once the store is back.
package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// Outcome describes a successful Mutate call.
type Outcome struct {
	// Task is the task as written, or as queued. A queued Add carries a
	// provisional negative ID.
	Task task.Task
	// Queued is true when the write was diverted to the pending queue.
	Queued bool
	// Op is the queued entry when Queued is true.
	Op queue.Op
}

// DrainResult reports a replay pass.
type DrainResult struct {
	Applied   int
	Remaining int
	// Failed is the entry that stopped the pass, nil when every entry applied.
	Failed *queue.Op
	// Remapped maps provisional IDs to the IDs the store assigned.
	Remapped map[int]int
}

// Coordinator wraps every mutating store call.
type Coordinator struct {
	store    store.TaskStore
	queue    *queue.Queue
	logger   *log.Logger
	activity *activity.Log
	today    func() date.Date

	drainMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithActivityLog records mutations, diversions and drains to l.
func WithActivityLog(l *activity.Log) Option {
	return func(c *Coordinator) { c.activity = l }
}

// WithToday overrides the calendar used by lifecycle operations.
func WithToday(fn func() date.Date) Option {
	return func(c *Coordinator) { c.today = fn }
}

// New returns a Coordinator writing to s and diverting to q.
func New(s store.TaskStore, q *queue.Queue, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  s,
		queue:  q,
		logger: log.New(os.Stderr, "housekeep: ", 0),
		today:  date.Today,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Coordinator) Store() store.TaskStore { return c.store }

// Mutate validates op and applies it. A transient store failure queues op
// and reports Queued; any other failure is returned and nothing is queued.
// Ops on a task that already has queued entries are queued behind them
// without touching the store, so per-task order is kept.
func (c *Coordinator) Mutate(ctx context.Context, op queue.Op) (Outcome, error) {
	if err := validateOp(op); err != nil {
		return Outcome{}, err
	}

	blocked, err := c.hasPending(op)
	if err != nil {
		return Outcome{}, err
	}
	if !blocked {
		written, err := c.apply(ctx, op)
		if err == nil {
			c.record(op, written)
			return Outcome{Task: written}, nil
		}
		if !store.IsTransient(err) {
			return Outcome{}, err
		}
		c.logger.Printf("store unreachable, queueing %s: %v", op, err)
	}
	return c.enqueue(op)
}

// Add creates t.
func (c *Coordinator) Add(ctx context.Context, t task.Task) (Outcome, error) {
	if t.Status == "" {
		t.Status = task.Active
	}
	return c.Mutate(ctx, queue.Op{Kind: queue.KindAdd, Task: t})
}

// Update overwrites t.
func (c *Coordinator) Update(ctx context.Context, t task.Task) (Outcome, error) {
	return c.Mutate(ctx, queue.Op{Kind: queue.KindUpdate, Task: t})
}

// Delete removes the task with the given ID.
func (c *Coordinator) Delete(ctx context.Context, id int) (Outcome, error) {
	t, err := c.Get(ctx, id)
	if err != nil && !store.IsTransient(err) {
		return Outcome{}, err
	}
	if t == nil {
		t = &task.Task{ID: id}
	}
	return c.Mutate(ctx, queue.Op{Kind: queue.KindDelete, Task: *t})
}

// SetStatus moves a task through the transition guard. Moving to the
// current status changes nothing.
func (c *Coordinator) SetStatus(ctx context.Context, id int, next task.Status) (Outcome, error) {
	t, err := c.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if t.Status == next {
		return Outcome{Task: *t}, nil
	}
	if err := t.SetStatus(next, c.today()); err != nil {
		return Outcome{}, err
	}
	return c.Mutate(ctx, queue.Op{Kind: queue.KindStatus, Task: *t, Status: next})
}

// Complete marks a task as done today.
func (c *Coordinator) Complete(ctx context.Context, id int) (Outcome, error) {
	return c.SetStatus(ctx, id, task.Completed)
}

// Cancel marks a task as cancelled.
func (c *Coordinator) Cancel(ctx context.Context, id int) (Outcome, error) {
	return c.SetStatus(ctx, id, task.Cancelled)
}

// Reactivate returns a task to active.
func (c *Coordinator) Reactivate(ctx context.Context, id int) (Outcome, error) {
	return c.SetStatus(ctx, id, task.Active)
}

// Postpone shifts a task's due date by days and marks it postponed.
func (c *Coordinator) Postpone(ctx context.Context, id, days int) (Outcome, error) {
	t, err := c.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if err := t.Postpone(days, c.today()); err != nil {
		return Outcome{}, err
	}
	return c.Mutate(ctx, queue.Op{Kind: queue.KindUpdate, Task: *t})
}

// Pending returns the number of queued writes.
func (c *Coordinator) Pending(_ context.Context) (int, error) {
	return c.queue.Len()
}

// PendingOps returns the queued writes, oldest first.
func (c *Coordinator) PendingOps(_ context.Context) ([]queue.Op, error) {
	return c.queue.LoadAll()
}

// Drop removes one queued write. ref is an op ID or a unique prefix of
// one. Dropping an Add also drops the writes queued behind it for the same
// provisional task, since they could never be replayed.
func (c *Coordinator) Drop(_ context.Context, ref string) ([]queue.Op, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	var dropped []queue.Op
	err := c.queue.Update(func(cur []queue.Op) ([]queue.Op, error) {
		var matches []int
		for i, op := range cur {
			if strings.HasPrefix(op.ID, ref) {
				matches = append(matches, i)
			}
		}
		switch {
		case ref == "" || len(matches) == 0:
			return nil, clierr.Newf(clierr.InvalidInput, "no pending operation matches %q", ref)
		case len(matches) > 1:
			return nil, clierr.Newf(clierr.InvalidInput, "%q matches %d pending operations", ref, len(matches))
		}

		target := cur[matches[0]]
		orphaned := target.Kind == queue.KindAdd && target.Task.ID < 0
		rest := make([]queue.Op, 0, len(cur)-1)
		for _, op := range cur {
			if op.ID == target.ID || (orphaned && op.TaskID() == target.TaskID()) {
				dropped = append(dropped, op)
				continue
			}
			rest = append(rest, op)
		}
		return rest, nil
	})
	if err != nil {
		return nil, err
	}
	for _, op := range dropped {
		c.logger.Printf("dropped pending %s", op)
	}
	return dropped, nil
}

// ClearPending discards every queued write and returns how many there were.
func (c *Coordinator) ClearPending(_ context.Context) (int, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	n, err := c.queue.Len()
	if err != nil {
		return 0, err
	}
	if err := c.queue.Clear(); err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Printf("cleared %d pending operation(s)", n)
	}
	return n, nil
}

// Drain replays queued writes in order. It stops at the first failure and
// keeps that entry and everything after it; entries replayed before the
// failure are removed. A pass that replays everything leaves the queue empty.
// Once started, a pass is not interrupted by ctx cancellation.
func (c *Coordinator) Drain(ctx context.Context) (DrainResult, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	unlock, err := c.queue.LockDrain()
	if err != nil {
		return DrainResult{}, fmt.Errorf("acquiring drain lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.Printf("Warning: releasing drain lock: %v", err)
		}
	}()

	ops, err := c.queue.LoadAll()
	if err != nil {
		return DrainResult{}, err
	}
	if len(ops) == 0 {
		return DrainResult{}, nil
	}

	ctx = context.WithoutCancel(ctx)
	res := DrainResult{Remapped: make(map[int]int)}
	applied := make(map[string]bool, len(ops))
	var replayErr error

	for _, op := range ops {
		op = remap(op, res.Remapped)
		written, err := c.replay(ctx, op)
		if err != nil && op.Kind == queue.KindDelete && store.IsNotFound(err) {
			err = nil
		}
		if err != nil {
			failed := op
			res.Failed = &failed
			replayErr = fmt.Errorf("replaying %s: %w", op, err)
			break
		}
		if op.Kind == queue.KindAdd && op.Task.ID < 0 {
			res.Remapped[op.Task.ID] = written.ID
		}
		applied[op.ID] = true
		res.Applied++
		c.record(op, written)
	}

	// A pass that replayed nothing leaves the queue file untouched.
	if res.Applied > 0 {
		err = c.queue.Update(func(cur []queue.Op) ([]queue.Op, error) {
			rest := make([]queue.Op, 0, len(cur))
			for _, op := range cur {
				if !applied[op.ID] {
					rest = append(rest, remap(op, res.Remapped))
				}
			}
			return rest, nil
		})
		if err != nil {
			return res, fmt.Errorf("updating queue after drain: %w", err)
		}
	}

	remaining, err := c.queue.Len()
	if err != nil {
		return res, err
	}
	res.Remaining = remaining

	c.logger.Printf("sync: applied %d, remaining %d", res.Applied, res.Remaining)
	c.activity.Recordf(activity.ActionSync, 0, "applied %d, remaining %d", res.Applied, res.Remaining)
	return res, replayErr
}

func (c *Coordinator) apply(ctx context.Context, op queue.Op) (task.Task, error) {
	switch op.Kind {
	case queue.KindAdd:
		t := op.Task
		if t.ID < 0 {
			t.ID = 0
		}
		return c.store.Add(ctx, t)
	case queue.KindUpdate:
		return op.Task, c.store.Update(ctx, op.Task)
	case queue.KindDelete:
		return op.Task, c.store.Delete(ctx, op.Task.ID)
	case queue.KindStatus:
		return op.Task, c.store.SetStatus(ctx, op.Task.ID, op.Status)
	default:
		return task.Task{}, fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

// replay applies a queued op during drain. A queued completion keeps the
// completion date it was given offline instead of the store's current date.
func (c *Coordinator) replay(ctx context.Context, op queue.Op) (task.Task, error) {
	if op.Kind != queue.KindStatus || op.Status != task.Completed || op.Task.LastCompleted == nil {
		return c.apply(ctx, op)
	}
	cur, err := c.store.GetByID(ctx, op.Task.ID)
	if err != nil {
		return task.Task{}, err
	}
	cur.Status = task.Completed
	cur.LastCompleted = op.Task.LastCompleted
	return *cur, c.store.Update(ctx, *cur)
}

// hasPending reports whether op must wait behind queued entries for the same task.
func (c *Coordinator) hasPending(op queue.Op) (bool, error) {
	if op.Kind == queue.KindAdd {
		return false, nil
	}
	if op.Task.ID < 0 {
		return true, nil
	}
	ops, err := c.queue.LoadAll()
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(ops, func(p queue.Op) bool { return p.TaskID() == op.TaskID() }), nil
}

func (c *Coordinator) enqueue(op queue.Op) (Outcome, error) {
	queued, err := c.queue.EnqueueFunc(func(pending []queue.Op) (queue.Op, error) {
		if op.Kind == queue.KindAdd {
			op.Task.ID = nextProvisionalID(pending)
		}
		return op, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("queueing %s: %w", op, err)
	}
	c.activity.Record(activity.ActionQueued, queued.Task.ID, queued.String())
	return Outcome{Task: queued.Task, Queued: true, Op: queued}, nil
}

func (c *Coordinator) record(op queue.Op, written task.Task) {
	switch op.Kind {
	case queue.KindAdd:
		c.activity.Record(activity.ActionAdd, written.ID, written.Name)
	case queue.KindUpdate:
		c.activity.Record(activity.ActionUpdate, written.ID, written.Name)
	case queue.KindDelete:
		c.activity.Record(activity.ActionDelete, op.Task.ID, op.Task.Name)
	case queue.KindStatus:
		c.activity.Record(activity.ActionStatus, op.Task.ID, string(op.Status))
	}
}

func validateOp(op queue.Op) error {
	switch op.Kind {
	case queue.KindAdd, queue.KindUpdate:
		return task.Validate(&op.Task)
	case queue.KindStatus:
		if !op.Status.IsValid() {
			_, err := task.ParseStatus(string(op.Status))
			return err
		}
	}
	return op.Validate()
}

// nextProvisionalID returns an ID below every provisional ID in pending.
func nextProvisionalID(pending []queue.Op) int {
	lowest := 0
	for _, op := range pending {
		lowest = min(lowest, op.TaskID())
	}
	return lowest - 1
}

// remap rewrites a provisional task ID to its store ID.
func remap(op queue.Op, ids map[int]int) queue.Op {
	if id, ok := ids[op.Task.ID]; ok {
		op.Task.ID = id
	}
	return op
}
