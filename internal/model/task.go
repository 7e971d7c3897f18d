package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStatus = errors.New("model: invalid task status")
	ErrInvalidTaskID = errors.New("model: invalid task id")
)

type TaskStatus string

const (
	TaskStatusNew                TaskStatus = "new"
	TaskStatusInProgress         TaskStatus = "in_progress"
	TaskStatusPaused             TaskStatus = "paused"
	TaskStatusCompleted          TaskStatus = "completed"
	TaskStatusReportAdded        TaskStatus = "report_added"
	TaskStatusAcceptedByCustomer TaskStatus = "accepted_by_customer"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusPaused, TaskStatusCompleted,
		TaskStatusReportAdded, TaskStatusAcceptedByCustomer:
		return true
	default:
		return false
	}
}

// Task is the read-only snapshot of a work order as delivered by the task
// backend. Only the fields that drive reminder policy are kept.
type Task struct {
	ID        int64
	Title     string
	Status    TaskStatus
	StartDate *time.Time
	DueDate   *time.Time
}

// Eligible reports whether the task is in the only state that receives
// reminders. Unknown statuses are never eligible.
func (t Task) Eligible() bool {
	return t.Status == TaskStatusNew
}

// HasSchedule reports whether the task carries a start or due date.
func (t Task) HasSchedule() bool {
	return t.StartDate != nil || t.DueDate != nil
}

// SameStart compares the start dates of two snapshots, treating two missing
// dates as equal.
func (t Task) SameStart(other Task) bool {
	return sameInstant(t.StartDate, other.StartDate)
}

// Validate rejects rows that cannot be tracked at all (no id) and flags
// statuses outside the closed set. A task with an unknown status is still a
// valid snapshot; it is just never eligible.
func (t Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTaskID, t.ID)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
