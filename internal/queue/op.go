package queue

import (
	"fmt"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// Kind is the type of a queued write.
type Kind string

// Operation kinds.
const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindStatus Kind = "status"
)

// Op is a write that could not be applied to the store.
type Op struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	Task     task.Task   `json:"task"`
	Status   task.Status `json:"status,omitempty"`
	QueuedAt time.Time   `json:"queued_at"`
}

// TaskID returns the ID of the task the op refers to.
func (o Op) TaskID() int { return o.Task.ID }

// Validate checks that the op can be replayed.
func (o Op) Validate() error {
	switch o.Kind {
	case KindAdd, KindUpdate, KindDelete:
		return nil
	case KindStatus:
		if !o.Status.IsValid() {
			return fmt.Errorf("status op for task #%d has invalid status %q", o.Task.ID, o.Status)
		}
		return nil
	default:
		return fmt.Errorf("unknown op kind %q", o.Kind)
	}
}

// String summarizes the op for logs.
func (o Op) String() string {
	switch o.Kind {
	case KindStatus:
		return fmt.Sprintf("%s #%d -> %s", o.Kind, o.Task.ID, o.Status)
	case KindDelete:
		return fmt.Sprintf("%s #%d", o.Kind, o.Task.ID)
	default:
		return fmt.Sprintf("%s #%d %q", o.Kind, o.Task.ID, o.Task.Name)
	}
}
