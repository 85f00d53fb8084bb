package syncer

import (
	"context"
	"slices"

	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// View is the task list as the user expects it: the store contents with
// queued writes applied on top.
type View struct {
	Tasks []task.Task
	// Pending is the number of queued writes.
	Pending int
	// Offline is true when the store could not be read and Tasks only
	// holds what the queue knows about.
	Offline bool
	// PendingIDs marks tasks with queued writes.
	PendingIDs map[int]bool
}

// List returns the current view. A transient store failure is not an
// error: the view is built from the queue alone and marked Offline.
func (c *Coordinator) List(ctx context.Context) (View, error) {
	ops, err := c.queue.LoadAll()
	if err != nil {
		return View{}, err
	}

	tasks, err := c.store.GetAll(ctx)
	offline := false
	if err != nil {
		if !store.IsTransient(err) {
			return View{}, err
		}
		offline = true
	}

	v := View{
		Tasks:      overlay(tasks, ops),
		Pending:    len(ops),
		Offline:    offline,
		PendingIDs: make(map[int]bool, len(ops)),
	}
	for _, op := range ops {
		v.PendingIDs[op.TaskID()] = true
	}
	return v, nil
}

// Get returns a task with its queued writes applied. Provisional IDs are
// resolved from the queue; if the store is unreachable the latest queued
// snapshot is used when there is one.
func (c *Coordinator) Get(ctx context.Context, id int) (*task.Task, error) {
	ops, err := c.queue.LoadAll()
	if err != nil {
		return nil, err
	}

	var base []task.Task
	var storeErr error
	if id > 0 {
		t, err := c.store.GetByID(ctx, id)
		switch {
		case err == nil:
			base = []task.Task{*t}
		case store.IsNotFound(err):
		default:
			storeErr = err
		}
	}

	merged := overlay(base, ops)
	if i := slices.IndexFunc(merged, func(t task.Task) bool { return t.ID == id }); i >= 0 {
		return &merged[i], nil
	}
	if storeErr != nil {
		return nil, storeErr
	}
	return nil, store.NotFound("get", id)
}

// overlay applies ops in order to tasks. Store IDs come first in ascending
// order, provisional IDs after them in creation order.
func overlay(tasks []task.Task, ops []queue.Op) []task.Task {
	byID := make(map[int]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, op := range ops {
		switch op.Kind {
		case queue.KindAdd, queue.KindUpdate:
			byID[op.Task.ID] = op.Task
		case queue.KindStatus:
			t := op.Task
			t.Status = op.Status
			byID[t.ID] = t
		case queue.KindDelete:
			delete(byID, op.Task.ID)
		}
	}

	out := make([]task.Task, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b task.Task) int {
		switch {
		case a.ID > 0 && b.ID > 0:
			return a.ID - b.ID
		case a.ID < 0 && b.ID < 0:
			return b.ID - a.ID
		case a.ID > 0:
			return -1
		default:
			return 1
		}
	})
	return out
}
