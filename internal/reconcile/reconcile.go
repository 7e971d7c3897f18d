// Package reconcile diffs successive task-list snapshots and drives the
// scheduling engine only for tasks whose reminders are affected.
package reconcile

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/sandeepkv93/taskremind/internal/fanout"
	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/reminders"
	"github.com/sourcegraph/conc/panics"
)

// Engine is the part of the scheduling engine a pass needs.
type Engine interface {
	CancelTaskReminders(ctx context.Context, taskID int64) int
	RescheduleTaskReminders(ctx context.Context, task model.Task) (reminders.Summary, bool)
	ScheduleAllTaskReminders(ctx context.Context, task model.Task) (reminders.Summary, bool)
}

// Changes is the classification of one snapshot against the previous one.
// Task buckets keep the order of the incoming list; Deleted is ascending.
type Changes struct {
	Added         []model.Task
	Deleted       []int64
	TimeChanged   []model.Task
	StatusChanged []model.Task
	Unchanged     []model.Task
}

// Result tallies what a pass did per bucket.
type Result struct {
	Changes     Changes
	Cancelled   int // deleted tasks processed
	Rescheduled int
	Scheduled   int
	Stopped     int // status_changed tasks whose reminders were cancelled
}

// Classify compares current against prev. A start-date change wins over a
// status change for the same task.
func Classify(prev map[int64]model.Task, current []model.Task) Changes {
	var ch Changes
	seen := make(map[int64]struct{}, len(current))
	for _, task := range current {
		seen[task.ID] = struct{}{}
		old, ok := prev[task.ID]
		switch {
		case !ok:
			ch.Added = append(ch.Added, task)
		case !task.SameStart(old):
			ch.TimeChanged = append(ch.TimeChanged, task)
		case task.Status != old.Status:
			ch.StatusChanged = append(ch.StatusChanged, task)
		default:
			ch.Unchanged = append(ch.Unchanged, task)
		}
	}
	for id := range prev {
		if _, ok := seen[id]; !ok {
			ch.Deleted = append(ch.Deleted, id)
		}
	}
	sort.Slice(ch.Deleted, func(i, j int) bool { return ch.Deleted[i] < ch.Deleted[j] })
	return ch
}

// Reconciler owns the previous snapshot. Passes are serialized.
type Reconciler struct {
	engine Engine
	log    *log.Logger

	mu   sync.Mutex
	prev map[int64]model.Task
}

func New(engine Engine, logger *log.Logger) *Reconciler {
	return &Reconciler{
		engine: engine,
		log:    logging.OrDiscard(logger),
		prev:   make(map[int64]model.Task),
	}
}

// Reconcile classifies tasks against the last snapshot and applies the
// buckets in order: deleted, time_changed, added, status_changed. Each bucket
// is joined before the next starts. An empty list clears the snapshot and
// does nothing else.
func (r *Reconciler) Reconcile(ctx context.Context, tasks []model.Task) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(tasks) == 0 {
		r.prev = make(map[int64]model.Task)
		return Result{}
	}

	res := Result{Changes: Classify(r.prev, tasks)}
	ch := res.Changes
	r.log.Printf("[DEBUG] Reconcile: %d added, %d deleted, %d time changed, %d status changed, %d unchanged\n",
		len(ch.Added), len(ch.Deleted), len(ch.TimeChanged), len(ch.StatusChanged), len(ch.Unchanged))

	res.Cancelled = r.applyDeleted(ctx, ch.Deleted)
	res.Rescheduled = r.applyTimeChanged(ctx, ch.TimeChanged)
	res.Scheduled = r.applyAdded(ctx, ch.Added)
	res.Stopped = r.applyStatusChanged(ctx, ch.StatusChanged)

	next := make(map[int64]model.Task, len(tasks))
	for _, task := range tasks {
		next[task.ID] = task
	}
	r.prev = next
	return res
}

// Snapshot returns a copy of the previous snapshot.
func (r *Reconciler) Snapshot() map[int64]model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]model.Task, len(r.prev))
	for id, task := range r.prev {
		out[id] = task
	}
	return out
}

// Seed records tasks as the previous snapshot without touching reminders.
// It is used after a full scheduling pass has already covered them.
func (r *Reconciler) Seed(tasks []model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prev = make(map[int64]model.Task, len(tasks))
	for _, task := range tasks {
		r.prev[task.ID] = task
	}
}

// Reset forgets the previous snapshot so the next pass treats every task as
// added.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prev = make(map[int64]model.Task)
}

func (r *Reconciler) applyDeleted(ctx context.Context, ids []int64) int {
	n := 0
	for _, id := range ids {
		rec := fanout.Guard(func() { r.engine.CancelTaskReminders(ctx, id) })
		if rec != nil {
			r.log.Printf("[ERROR] Cancelling reminders of deleted task %d failed: %s\n", id, rec.String())
			continue
		}
		n++
	}
	if len(ids) > 0 {
		r.log.Printf("[INFO] Cancelled reminders for %d of %d deleted tasks\n", n, len(ids))
	}
	return n
}

func (r *Reconciler) applyTimeChanged(ctx context.Context, tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	results := fanout.Map(tasks, false, r.logPanic("reschedule"), func(task model.Task) bool {
		if !task.Eligible() || task.StartDate == nil {
			return false
		}
		summary, ok := r.engine.RescheduleTaskReminders(ctx, task)
		return ok && summary.Rescheduled
	})
	n := fanout.Count(results)
	r.log.Printf("[INFO] Rescheduled %d/%d tasks with a new start date\n", n, len(tasks))
	return n
}

func (r *Reconciler) applyAdded(ctx context.Context, tasks []model.Task) int {
	valid := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Eligible() && task.HasSchedule() {
			valid = append(valid, task)
		}
	}
	if len(tasks) > 0 {
		r.log.Printf("[DEBUG] %d of %d added tasks need reminders\n", len(valid), len(tasks))
	}
	if len(valid) == 0 {
		return 0
	}
	results := fanout.Map(valid, false, r.logPanic("schedule"), func(task model.Task) bool {
		_, ok := r.engine.ScheduleAllTaskReminders(ctx, task)
		return ok
	})
	n := fanout.Count(results)
	r.log.Printf("[INFO] Scheduled reminders for %d new tasks\n", n)
	return n
}

func (r *Reconciler) applyStatusChanged(ctx context.Context, tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	results := fanout.Map(tasks, false, r.logPanic("cancel"), func(task model.Task) bool {
		if task.Eligible() {
			return false
		}
		r.engine.CancelTaskReminders(ctx, task.ID)
		return true
	})
	n := fanout.Count(results)
	r.log.Printf("[INFO] Cancelled reminders for %d tasks that left status %q\n", n, model.TaskStatusNew)
	return n
}

func (r *Reconciler) logPanic(op string) func(model.Task, *panics.Recovered) {
	return func(task model.Task, rec *panics.Recovered) {
		r.log.Printf("[ERROR] %s of task %d panicked: %s\n", op, task.ID, rec.String())
	}
}
