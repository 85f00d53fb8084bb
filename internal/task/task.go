// Package task defines household tasks, their status lifecycle
// and their markdown file representation.
package task

import (
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/date"
)

// Task is a recurring household chore.
type Task struct {
	ID            int        `yaml:"id" json:"id"`
	Name          string     `yaml:"name" json:"name"`
	Status        Status     `yaml:"status" json:"status"`
	Priority      int        `yaml:"priority" json:"priority"`
	Due           *date.Date `yaml:"due,omitempty" json:"due,omitempty"`
	AssignedTo    string     `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	Type          string     `yaml:"type,omitempty" json:"type,omitempty"`
	LastCompleted *date.Date `yaml:"last_completed,omitempty" json:"last_completed,omitempty"`
	Created       time.Time  `yaml:"created" json:"created"`
	Updated       time.Time  `yaml:"updated" json:"updated"`

	// Description is free text. The file backend stores it as the markdown body.
	Description string `yaml:"-" json:"description,omitempty"`
}

// New returns an Active task with the given name and priority.
func New(name string, priority int) Task {
	return Task{Name: name, Priority: priority, Status: Active}
}

// IsProvisional reports whether the ID was assigned locally while the
// store was unreachable and has not been replaced by a store ID yet.
func (t *Task) IsProvisional() bool {
	return t.ID < 0
}
