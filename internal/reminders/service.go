// Package reminders is the scheduling engine: it turns rule decisions into
// platform notifications, cancels them, and keeps the per-task cache.
//
// No error crosses the public methods. Platform failures degrade to "no
// reminder scheduled" and are logged; permission denial is the only
// condition that short-circuits a whole call.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/taskremind/internal/fanout"
	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/rules"
	"github.com/sandeepkv93/taskremind/internal/store"
	"github.com/sourcegraph/conc/panics"
)

const DefaultBatchSize = 5

var ErrPlatformPanic = errors.New("reminders: platform call panicked")

// Summary reports what one task's scheduling pass produced. An empty id
// means that category produced no notification.
type Summary struct {
	TaskID         int64
	WeekBeforeID   string
	DailyReminders int
	DailyIDs       []string
	DayBeforeID    string
	HourBeforeID   string
	OverdueID      string
	Rescheduled    bool
}

// Total is the number of platform entries the pass created.
func (s Summary) Total() int {
	n := s.DailyReminders
	for _, id := range []string{s.WeekBeforeID, s.DayBeforeID, s.HourBeforeID, s.OverdueID} {
		if id != "" {
			n++
		}
	}
	return n
}

type BulkResult struct {
	Success int
	Failed  int
	Batches []int
}

type Options struct {
	Evaluator rules.Evaluator
	BatchSize int
	Now       func() time.Time
	Logger    *log.Logger
}

type Service struct {
	store     store.Store
	eval      rules.Evaluator
	cache     *Cache
	now       func() time.Time
	log       *log.Logger
	batchSize int

	mu         sync.Mutex
	processing bool
	pending    map[int64]struct{}
}

func NewService(st store.Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Service{
		store:     st,
		eval:      opts.Evaluator,
		cache:     NewCache(),
		now:       opts.Now,
		log:       logging.OrDiscard(opts.Logger),
		batchSize: opts.BatchSize,
		pending:   make(map[int64]struct{}),
	}
}

func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) Evaluator() rules.Evaluator {
	return s.eval
}

// RequestPermission asks the platform for permission. Errors count as a
// denial.
func (s *Service) RequestPermission(ctx context.Context) bool {
	var granted bool
	err := guard(func() (err error) {
		granted, err = s.store.RequestPermission(ctx)
		return err
	})
	if err != nil {
		s.log.Printf("[ERROR] Permission request failed: %s\n", err.Error())
		return false
	}
	if !granted {
		s.log.Printf("[WARN] %s\n", s.eval.Catalog.PermissionDenied)
	}
	return granted
}

// ScheduleAllTaskReminders schedules every applicable category for task.
// The second result is false only when permission is denied.
func (s *Service) ScheduleAllTaskReminders(ctx context.Context, task model.Task) (Summary, bool) {
	if !s.RequestPermission(ctx) {
		return Summary{}, false
	}
	return s.scheduleCategories(ctx, task), true
}

// RescheduleTaskReminders cancels what exists for the task and schedules a
// fresh set if the task is still eligible.
func (s *Service) RescheduleTaskReminders(ctx context.Context, task model.Task) (Summary, bool) {
	s.CancelTaskReminders(ctx, task.ID)
	if !task.Eligible() {
		s.log.Printf("[DEBUG] Task %d is %q, not rescheduling\n", task.ID, task.Status)
		return Summary{}, false
	}
	summary, ok := s.ScheduleAllTaskReminders(ctx, task)
	if !ok {
		return Summary{}, false
	}
	summary.Rescheduled = true
	return summary, true
}

// BulkRescheduleTasks processes tasks in sequential batches; tasks inside a
// batch run concurrently. Ineligible tasks count as failed.
func (s *Service) BulkRescheduleTasks(ctx context.Context, tasks []model.Task) BulkResult {
	if !s.RequestPermission(ctx) {
		return BulkResult{Failed: len(tasks)}
	}

	var res BulkResult
	for i := 0; i < len(tasks); i += s.batchSize {
		end := i + s.batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[i:end]
		res.Batches = append(res.Batches, len(batch))

		results := fanout.Map(batch, false, s.logPanic("bulk reschedule"), func(task model.Task) bool {
			s.CancelTaskReminders(ctx, task.ID)
			if !task.Eligible() {
				return false
			}
			s.scheduleCategories(ctx, task)
			return true
		})
		ok := fanout.Count(results)
		res.Success += ok
		res.Failed += len(batch) - ok
	}

	s.log.Printf("[INFO] Bulk reschedule: %d ok, %d failed in %d batches\n",
		res.Success, res.Failed, len(res.Batches))
	return res
}

// ScheduleRemindersForTaskList is the pass run after the task list loads.
// A call arriving while a pass is in flight records its task ids as pending
// and returns 0. Pending ids are not retried.
func (s *Service) ScheduleRemindersForTaskList(ctx context.Context, tasks []model.Task) int {
	if !s.beginPass(tasks) {
		return 0
	}
	defer s.endPass()

	if !s.RequestPermission(ctx) {
		return 0
	}

	valid := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Eligible() && task.HasSchedule() {
			valid = append(valid, task)
		}
	}

	var count int64
	fanout.Map(valid, struct{}{}, s.logPanic("task list pass"), func(task model.Task) struct{} {
		atomic.AddInt64(&count, int64(s.scheduleForList(ctx, task)))
		return struct{}{}
	})

	s.log.Printf("[INFO] Scheduled %d notifications for %d of %d tasks\n",
		count, len(valid), len(tasks))
	return int(count)
}

// PendingTaskIDs lists ids skipped because a pass was already running.
func (s *Service) PendingTaskIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Processing reports whether a task-list pass is in flight.
func (s *Service) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// CancelTaskReminders cancels every platform entry tagged with taskID and
// drops the cache entry. It returns how many entries were found.
func (s *Service) CancelTaskReminders(ctx context.Context, taskID int64) int {
	all, err := s.list(ctx)
	if err != nil {
		s.log.Printf("[ERROR] Cannot list notifications to cancel task %d: %s\n",
			taskID, err.Error())
		return 0
	}
	defer s.cache.RemoveAll(taskID)

	found := store.FilterTask(all, taskID)
	if len(found) == 0 {
		return 0
	}

	onPanic := func(item store.Scheduled, rec *panics.Recovered) {
		s.log.Printf("[ERROR] Cancel of notification %s panicked: %s\n", item.ID, rec.String())
	}
	fanout.Map(found, struct{}{}, onPanic, func(item store.Scheduled) struct{} {
		if err := s.store.Cancel(ctx, item.ID); err != nil {
			s.log.Printf("[ERROR] Cannot cancel notification %s of task %d: %s\n",
				item.ID, taskID, err.Error())
		}
		return struct{}{}
	})
	s.log.Printf("[DEBUG] Cancelled %d notifications of task %d\n", len(found), taskID)
	return len(found)
}

// CancelAllReminders clears the whole platform schedule and the cache.
func (s *Service) CancelAllReminders(ctx context.Context) bool {
	defer s.cache.Clear()
	if err := guard(func() error { return s.store.CancelAll(ctx) }); err != nil {
		s.log.Printf("[ERROR] Cannot cancel all notifications: %s\n", err.Error())
		return false
	}
	return true
}

// HasExistingNotifications checks the cache first and falls back to a full
// scan of the platform schedule.
func (s *Service) HasExistingNotifications(ctx context.Context, taskID int64) bool {
	if s.cache.Has(taskID) {
		return true
	}
	all, err := s.list(ctx)
	if err != nil {
		s.log.Printf("[ERROR] Cannot list notifications: %s\n", err.Error())
		return false
	}
	return len(store.FilterTask(all, taskID)) > 0
}

// ScheduledNotifications is the platform schedule, or nothing on error.
func (s *Service) ScheduledNotifications(ctx context.Context) []store.Scheduled {
	all, err := s.list(ctx)
	if err != nil {
		s.log.Printf("[ERROR] Cannot list notifications: %s\n", err.Error())
		return []store.Scheduled{}
	}
	return all
}

func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

func (s *Service) ClearCacheForTask(taskID int64) bool {
	return s.cache.RemoveAll(taskID)
}

func (s *Service) ClearAllCache() {
	s.cache.Clear()
}

func (s *Service) CheckTaskCache(taskID int64) []string {
	ids := s.cache.Get(taskID)
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *Service) beginPass(tasks []model.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		for _, task := range tasks {
			s.pending[task.ID] = struct{}{}
		}
		s.log.Printf("[WARN] Task list pass already running, %d tasks marked pending\n", len(tasks))
		return false
	}
	s.processing = true
	return true
}

func (s *Service) endPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	if len(s.pending) > 0 {
		s.log.Printf("[WARN] Dropping %d pending task ids skipped during the pass\n", len(s.pending))
		s.pending = make(map[int64]struct{})
	}
}

// scheduleCategories evaluates the five categories concurrently. A panic in
// one category is logged and leaves the others intact.
func (s *Service) scheduleCategories(ctx context.Context, task model.Task) Summary {
	summary := Summary{TaskID: task.ID}
	now := s.now()

	rec := fanout.All(
		func() {
			if d, ok := s.eval.WeekBefore(task, now); ok {
				summary.WeekBeforeID = s.scheduleAt(ctx, task, d)
			}
		},
		func() {
			for _, d := range s.eval.DailyCountdown(task, now) {
				if id := s.scheduleAt(ctx, task, d); id != "" {
					summary.DailyIDs = append(summary.DailyIDs, id)
				}
			}
		},
		func() {
			if d, ok := s.eval.DayBefore(task, now); ok {
				summary.DayBeforeID = s.scheduleAt(ctx, task, d)
			}
		},
		func() {
			if d, ok := s.eval.HourBefore(task, now); ok {
				summary.HourBeforeID = s.scheduleAt(ctx, task, d)
			}
		},
		func() {
			if d, ok := s.eval.Overdue(task, now); ok {
				summary.OverdueID = s.scheduleAt(ctx, task, d)
			}
		},
	)
	if rec != nil {
		s.log.Printf("[ERROR] Reminder category for task %d panicked: %s\n", task.ID, rec.String())
	}
	summary.DailyReminders = len(summary.DailyIDs)
	return summary
}

// scheduleForList applies the branch used by the task-list pass and returns
// how many notifications it created.
func (s *Service) scheduleForList(ctx context.Context, task model.Task) int {
	now := s.now()
	decisions := make([]rules.Decision, 0, 11)
	add := func(d rules.Decision, ok bool) {
		if ok {
			decisions = append(decisions, d)
		}
	}

	if task.StartDate != nil {
		switch {
		case rules.IsWithinWeekRange(task, now):
			add(s.eval.WeekBefore(task, now))
			decisions = append(decisions, s.eval.DailyCountdown(task, now)...)
			add(s.eval.DayBefore(task, now))
			add(s.eval.HourBefore(task, now))
		case rules.IsLessThanDayAway(task, now):
			add(s.eval.StartImmediate(task, now))
		default:
			add(s.eval.DayBefore(task, now))
			add(s.eval.HourBefore(task, now))
		}
	}
	if task.DueDate != nil {
		add(s.eval.Overdue(task, now))
	}

	onPanic := func(d rules.Decision, rec *panics.Recovered) {
		s.log.Printf("[ERROR] Scheduling %s for task %d panicked: %s\n", d.Tag(), task.ID, rec.String())
	}
	results := fanout.Map(decisions, "", onPanic, func(d rules.Decision) string {
		return s.scheduleAt(ctx, task, d)
	})
	n := 0
	for _, id := range results {
		if id != "" {
			n++
		}
	}
	return n
}

// scheduleAt converts a decision into a platform request. The delay is
// computed at call time so a late call still reflects the remaining time.
func (s *Service) scheduleAt(ctx context.Context, task model.Task, d rules.Decision) string {
	now := s.now()
	delay := d.Delay
	if !d.Immediate {
		delay = d.Trigger.Sub(now).Truncate(time.Second)
	}
	if delay <= 0 {
		s.log.Printf("[DEBUG] Skipping %s for task %d, trigger %s already passed\n",
			d.Tag(), task.ID, d.Trigger.Format(time.RFC3339))
		return ""
	}

	priority := store.PriorityHigh
	data := store.Data{
		TaskID:    task.ID,
		Type:      d.Tag(),
		TaskTitle: task.Title,
		Timestamp: now,
	}
	if d.Kind == model.KindOverdue {
		priority = store.PriorityMax
		data.DaysOverdue = d.Days
	}

	id, err := s.store.Schedule(ctx, store.Request{
		Title:    d.Title,
		Body:     d.Body,
		Data:     data,
		Delay:    delay,
		Priority: priority,
	})
	if err != nil {
		s.log.Printf("[ERROR] Cannot schedule %s for task %d: %s\n", d.Tag(), task.ID, err.Error())
		return ""
	}
	s.cache.Add(task.ID, id)
	return id
}

// list is the platform schedule with a panic in the adapter turned into an
// error.
func (s *Service) list(ctx context.Context) ([]store.Scheduled, error) {
	var all []store.Scheduled
	err := guard(func() (err error) {
		all, err = s.store.List(ctx)
		return err
	})
	return all, err
}

func guard(call func() error) error {
	var err error
	if rec := fanout.Guard(func() { err = call() }); rec != nil {
		return fmt.Errorf("%w: %s", ErrPlatformPanic, rec.String())
	}
	return err
}

func (s *Service) logPanic(op string) func(model.Task, *panics.Recovered) {
	return func(task model.Task, rec *panics.Recovered) {
		s.log.Printf("[ERROR] %s for task %d panicked: %s\n", op, task.ID, rec.String())
	}
}
