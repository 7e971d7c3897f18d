// Package store defines the boundary to the platform's scheduled-notification
// primitive. Implementations only schedule, cancel and list; reminder policy
// lives in the rules and reminders packages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPermissionDenied = errors.New("store: notification permission denied")
	ErrInvalidDelay     = errors.New("store: delay must be positive")
	ErrClosed           = errors.New("store: closed")
)

type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityMax  Priority = "max"
)

// Data is the opaque payload attached to a notification. The platform is the
// only place the task association is queryable after scheduling, so TaskID
// and Type must round-trip through List.
type Data struct {
	TaskID      int64     `json:"taskId"`
	Type        string    `json:"type"`
	TaskTitle   string    `json:"taskTitle"`
	Timestamp   time.Time `json:"timestamp"`
	DaysOverdue int       `json:"daysOverdue,omitempty"`
}

type Request struct {
	Title    string
	Body     string
	Data     Data
	Delay    time.Duration
	Priority Priority
}

type Scheduled struct {
	ID          string
	Title       string
	Body        string
	Data        Data
	TriggerTime time.Time
	Priority    Priority
}

// Store is the platform notification primitive. Schedule takes a relative
// delay, not an absolute time.
type Store interface {
	RequestPermission(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, req Request) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
	List(ctx context.Context) ([]Scheduled, error)
}

// FilterTask returns the entries tagged with taskID.
func FilterTask(items []Scheduled, taskID int64) []Scheduled {
	out := make([]Scheduled, 0)
	for _, item := range items {
		if item.Data.TaskID == taskID {
			out = append(out, item)
		}
	}
	return out
}

// GroupByTask indexes entries by their task id; entries without one are
// skipped.
func GroupByTask(items []Scheduled) map[int64][]Scheduled {
	out := make(map[int64][]Scheduled)
	for _, item := range items {
		if item.Data.TaskID == 0 {
			continue
		}
		out[item.Data.TaskID] = append(out[item.Data.TaskID], item)
	}
	return out
}
