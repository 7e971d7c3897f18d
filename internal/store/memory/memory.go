// Package memory is an in-process Store used by tests and dry runs. It never
// fires anything on its own; call Fire to simulate delivery.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/taskremind/internal/store"
)

type Store struct {
	mu      sync.Mutex
	items   map[string]store.Scheduled
	nextID  int
	granted bool
	now     func() time.Time

	// Failure injection. A non-nil func is consulted on every call.
	ScheduleErr  func(req store.Request) error
	CancelErr    func(id string) error
	CancelAllErr error
	ListErr      error

	calls Calls
}

type Calls struct {
	Permission int
	Schedule   int
	Cancel     int
	CancelAll  int
	List       int
}

func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		items:   make(map[string]store.Scheduled),
		granted: true,
		now:     now,
	}
}

func (s *Store) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granted = granted
}

func (s *Store) RequestPermission(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Permission++
	return s.granted, ctx.Err()
}

func (s *Store) Schedule(ctx context.Context, req store.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Schedule++
	if s.ScheduleErr != nil {
		if err := s.ScheduleErr(req); err != nil {
			return "", err
		}
	}
	if !s.granted {
		return "", store.ErrPermissionDenied
	}
	if req.Delay <= 0 {
		return "", store.ErrInvalidDelay
	}
	s.nextID++
	id := fmt.Sprintf("mem-%d", s.nextID)
	s.items[id] = store.Scheduled{
		ID:          id,
		Title:       req.Title,
		Body:        req.Body,
		Data:        req.Data,
		TriggerTime: s.now().Add(req.Delay),
		Priority:    req.Priority,
	}
	return id, nil
}

// Cancel is idempotent: unknown ids are not an error.
func (s *Store) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Cancel++
	if s.CancelErr != nil {
		if err := s.CancelErr(id); err != nil {
			return err
		}
	}
	delete(s.items, id)
	return nil
}

func (s *Store) CancelAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.CancelAll++
	if s.CancelAllErr != nil {
		return s.CancelAllErr
	}
	s.items = make(map[string]store.Scheduled)
	return nil
}

func (s *Store) List(ctx context.Context) ([]store.Scheduled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.List++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]store.Scheduled, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerTime.Equal(out[j].TriggerTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggerTime.Before(out[j].TriggerTime)
	})
	return out, nil
}

// Fire simulates natural delivery: the entry disappears from the schedule.
func (s *Store) Fire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ store.Store = (*Store)(nil)
