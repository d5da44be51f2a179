package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Task is a to-do item owned by a single user.
type Task struct {
	gorm.Model
	UserID     string       `gorm:"index;not null"`
	Title      string       `gorm:"not null"`
	Status     TaskStatus   `gorm:"type:text;default:'pending';index"`
	Priority   TaskPriority `gorm:"type:text;default:null"`
	DueDate    *time.Time   `gorm:"index"`
	RemindedAt *time.Time
}

// TaskStatus is the type for the TaskStatus enum.
type TaskStatus string

// TaskStatus enum values.
const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// TaskPriority is the type for the TaskPriority enum. The empty value means
// no priority was given.
type TaskPriority string

// TaskPriority enum values.
const (
	PriorityNone   TaskPriority = ""
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// IsValidTaskStatus checks if the status is a known TaskStatus.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskCompleted:
		return true
	default:
		return false
	}
}

// IsValidTaskPriority checks if the priority is a known TaskPriority,
// including no priority.
func IsValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityNone, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ParseTaskPriority normalizes free-form priority text. Unknown values are
// reported with ok=false.
func ParseTaskPriority(s string) (TaskPriority, bool) {
	p := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if p == "null" || p == "none" {
		p = PriorityNone
	}
	return p, IsValidTaskPriority(p)
}

// Rank orders priorities for display: high first, none last.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// IsCompleted reports whether the task is done.
func (t *Task) IsCompleted() bool {
	return t.Status == TaskCompleted
}

func (t *Task) validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task title cannot be empty")
	}
	if t.UserID == "" {
		return errors.New("task must belong to a user")
	}
	if !IsValidTaskStatus(t.Status) {
		return errors.New("invalid task status provided")
	}
	if !IsValidTaskPriority(t.Priority) {
		return errors.New("invalid task priority provided")
	}
	return nil
}

// BeforeSave is a GORM hook that runs before creating or saving a Task.
func (t *Task) BeforeSave(tx *gorm.DB) (err error) {
	if t.Status == "" {
		t.Status = TaskPending
	}
	return t.validate()
}
