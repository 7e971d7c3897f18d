package reminders

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/taskremind/internal/locale"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/rules"
	"github.com/sandeepkv93/taskremind/internal/store"
	"github.com/sandeepkv93/taskremind/internal/store/memory"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	clock := func() time.Time { return testNow }
	eval := rules.NewEvaluator(locale.MustLookup("ru"))
	eval.Location = time.UTC
	mem := memory.New(clock)
	svc := NewService(mem, Options{Evaluator: eval, Now: clock})
	return svc, mem
}

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func newTask(id int64, status model.TaskStatus, start, due *time.Time) model.Task {
	return model.Task{ID: id, Title: "Task", Status: status, StartDate: start, DueDate: due}
}

func listFor(t *testing.T, mem *memory.Store, taskID int64) []store.Scheduled {
	t.Helper()
	all, err := mem.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return store.FilterTask(all, taskID)
}

func TestScheduleAllTwoDaysAhead(t *testing.T) {
	svc, mem := newTestService(t)
	task := newTask(1, model.TaskStatusNew, at(2*rules.Day), nil)

	summary, ok := svc.ScheduleAllTaskReminders(context.Background(), task)
	if !ok {
		t.Fatal("expected a summary")
	}
	if summary.DailyReminders != 2 {
		t.Fatalf("expected 2 daily reminders, got %d", summary.DailyReminders)
	}
	if summary.WeekBeforeID == "" || summary.HourBeforeID == "" {
		t.Fatalf("expected week-before and hour-before ids: %+v", summary)
	}
	if summary.OverdueID != "" {
		t.Fatalf("expected no overdue id without due date: %+v", summary)
	}

	entries := listFor(t, mem, task.ID)
	if len(entries) != summary.Total() {
		t.Fatalf("store has %d entries, summary reports %d", len(entries), summary.Total())
	}
	if got := len(svc.CheckTaskCache(task.ID)); got != summary.Total() {
		t.Fatalf("cache has %d ids, summary reports %d", got, summary.Total())
	}
}

func TestScheduleAllThirtyMinutesAheadFiresImmediately(t *testing.T) {
	svc, mem := newTestService(t)
	task := newTask(1, model.TaskStatusNew, at(30*time.Minute), nil)

	summary, ok := svc.ScheduleAllTaskReminders(context.Background(), task)
	if !ok {
		t.Fatal("expected a summary")
	}
	if summary.WeekBeforeID != "" || summary.DailyReminders != 0 || summary.HourBeforeID != "" {
		t.Fatalf("expected no forward reminders: %+v", summary)
	}
	entries := listFor(t, mem, task.ID)
	if len(entries) != 1 || entries[0].Data.Type != string(model.KindDayBeforeImmediate) {
		t.Fatalf("expected one immediate entry, got %+v", entries)
	}
	if !entries[0].TriggerTime.Equal(testNow.Add(rules.DefaultImmediateDelay)) {
		t.Fatalf("unexpected immediate trigger: %v", entries[0].TriggerTime)
	}
}

func TestScheduleAllIneligibleTaskSchedulesNothing(t *testing.T) {
	svc, mem := newTestService(t)
	task := newTask(2, model.TaskStatusCompleted, at(3*rules.Day), at(-rules.Day))

	summary, ok := svc.ScheduleAllTaskReminders(context.Background(), task)
	if !ok {
		t.Fatal("permission was granted, expected a summary")
	}
	if summary.Total() != 0 || mem.Len() != 0 {
		t.Fatalf("expected nothing scheduled, summary=%+v store=%d", summary, mem.Len())
	}
}

func TestOverdueCarriesMaxPriority(t *testing.T) {
	svc, mem := newTestService(t)
	task := newTask(3, model.TaskStatusNew, nil, at(-3*rules.Day))

	summary, ok := svc.ScheduleAllTaskReminders(context.Background(), task)
	if !ok || summary.OverdueID == "" {
		t.Fatalf("expected overdue id, got %+v", summary)
	}
	entries := listFor(t, mem, task.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Priority != store.PriorityMax || entries[0].Data.DaysOverdue != 3 {
		t.Fatalf("unexpected overdue entry: %+v", entries[0])
	}
	if !strings.Contains(entries[0].Body, "3 дня") {
		t.Fatalf("unexpected overdue body: %q", entries[0].Body)
	}
}

func TestPermissionDeniedShortCircuits(t *testing.T) {
	svc, mem := newTestService(t)
	mem.SetPermission(false)
	ctx := context.Background()
	tasks := []model.Task{
		newTask(1, model.TaskStatusNew, at(2*rules.Day), nil),
		newTask(2, model.TaskStatusNew, at(3*rules.Day), nil),
	}

	if _, ok := svc.ScheduleAllTaskReminders(ctx, tasks[0]); ok {
		t.Fatal("expected no summary when permission is denied")
	}
	if n := svc.ScheduleRemindersForTaskList(ctx, tasks); n != 0 {
		t.Fatalf("expected 0 scheduled, got %d", n)
	}
	if res := svc.BulkRescheduleTasks(ctx, tasks); res.Success != 0 || res.Failed != 2 {
		t.Fatalf("unexpected bulk result: %+v", res)
	}
	if mem.Calls().Schedule != 0 {
		t.Fatalf("expected no schedule calls, got %d", mem.Calls().Schedule)
	}
}

func TestFailingCategoryDoesNotBlockOthers(t *testing.T) {
	svc, mem := newTestService(t)
	mem.ScheduleErr = func(req store.Request) error {
		if req.Data.Type == string(model.KindHourBefore) {
			return errors.New("platform busy")
		}
		return nil
	}
	task := newTask(1, model.TaskStatusNew, at(3*rules.Day), nil)

	summary, ok := svc.ScheduleAllTaskReminders(context.Background(), task)
	if !ok {
		t.Fatal("expected a summary")
	}
	if summary.HourBeforeID != "" {
		t.Fatalf("hour-before should have failed: %+v", summary)
	}
	if summary.DayBeforeID == "" || summary.DailyReminders != 3 || summary.WeekBeforeID == "" {
		t.Fatalf("other categories should have been scheduled: %+v", summary)
	}
}

func TestCancelTaskRemindersIsIdempotent(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	task := newTask(1, model.TaskStatusNew, at(3*rules.Day), nil)
	other := newTask(2, model.TaskStatusNew, at(3*rules.Day), nil)
	svc.ScheduleAllTaskReminders(ctx, task)
	svc.ScheduleAllTaskReminders(ctx, other)

	if n := svc.CancelTaskReminders(ctx, task.ID); n == 0 {
		t.Fatal("expected entries to be cancelled")
	}
	if n := svc.CancelTaskReminders(ctx, task.ID); n != 0 {
		t.Fatalf("second cancel should find nothing, found %d", n)
	}
	if len(listFor(t, mem, task.ID)) != 0 || svc.Cache().Has(task.ID) {
		t.Fatal("task 1 should have no entries left")
	}
	if len(listFor(t, mem, other.ID)) == 0 {
		t.Fatal("task 2 entries must survive")
	}
}

func TestCancelTaskRemindersSurvivesListFailure(t *testing.T) {
	svc, mem := newTestService(t)
	mem.ListErr = errors.New("platform unavailable")
	if n := svc.CancelTaskReminders(context.Background(), 1); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	if got := svc.ScheduledNotifications(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty list on error, got %d", len(got))
	}
	if svc.HasExistingNotifications(context.Background(), 1) {
		t.Fatal("expected false when the platform cannot be listed")
	}
}

type explodingStore struct {
	*memory.Store
	listPanics     bool
	schedulePanics string
}

func (e *explodingStore) List(ctx context.Context) ([]store.Scheduled, error) {
	if e.listPanics {
		panic("list exploded")
	}
	return e.Store.List(ctx)
}

func (e *explodingStore) Schedule(ctx context.Context, req store.Request) (string, error) {
	if req.Data.Type == e.schedulePanics {
		panic("schedule exploded")
	}
	return e.Store.Schedule(ctx, req)
}

func TestPanickingListStaysInsideEngine(t *testing.T) {
	clock := func() time.Time { return testNow }
	st := &explodingStore{Store: memory.New(clock), listPanics: true}
	svc := NewService(st, Options{Evaluator: rules.NewEvaluator(locale.MustLookup("ru")), Now: clock})
	ctx := context.Background()
	svc.Cache().Add(1, "cached")

	if n := svc.CancelTaskReminders(ctx, 1); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	if svc.HasExistingNotifications(ctx, 2) {
		t.Fatal("expected false when listing panics")
	}
	if got := svc.ScheduledNotifications(ctx); len(got) != 0 {
		t.Fatalf("expected empty schedule, got %d", len(got))
	}
	if rep := svc.CacheReport(ctx); rep.StoreAvailable {
		t.Fatal("report must mark the platform unavailable")
	}
	if _, err := svc.list(ctx); !errors.Is(err, ErrPlatformPanic) {
		t.Fatalf("expected ErrPlatformPanic, got %v", err)
	}
}

func TestListPassLogsPanickingDecision(t *testing.T) {
	clock := func() time.Time { return testNow }
	eval := rules.NewEvaluator(locale.MustLookup("ru"))
	eval.Location = time.UTC
	st := &explodingStore{Store: memory.New(clock), schedulePanics: string(model.KindHourBefore)}
	var buf bytes.Buffer
	svc := NewService(st, Options{Evaluator: eval, Now: clock, Logger: log.New(&buf, "", 0)})

	task := newTask(1, model.TaskStatusNew, at(3*rules.Day), nil)
	if n := svc.ScheduleRemindersForTaskList(context.Background(), []model.Task{task}); n != 5 {
		t.Fatalf("expected the other 5 reminders scheduled, got %d", n)
	}
	if !strings.Contains(buf.String(), "Scheduling hour_before_reminder for task 1 panicked") {
		t.Fatalf("expected panic to be logged with the task id, log:\n%s", buf.String())
	}
}

func TestCancelAllClearsStoreAndCache(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	svc.ScheduleAllTaskReminders(ctx, newTask(1, model.TaskStatusNew, at(3*rules.Day), nil))

	if !svc.CancelAllReminders(ctx) {
		t.Fatal("expected cancel all to succeed")
	}
	if mem.Len() != 0 || svc.CacheStats().Notifications != 0 {
		t.Fatalf("expected empty store and cache, store=%d cache=%+v", mem.Len(), svc.CacheStats())
	}
}

func TestRescheduleReplacesEntries(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	task := newTask(1, model.TaskStatusNew, at(3*rules.Day), nil)
	first, _ := svc.ScheduleAllTaskReminders(ctx, task)

	task.StartDate = at(5 * rules.Day)
	second, ok := svc.RescheduleTaskReminders(ctx, task)
	if !ok || !second.Rescheduled {
		t.Fatalf("expected rescheduled summary, got %+v ok=%v", second, ok)
	}
	entries := listFor(t, mem, task.ID)
	if len(entries) != second.Total() {
		t.Fatalf("expected only the new entries, got %d want %d", len(entries), second.Total())
	}
	for _, e := range entries {
		if e.ID == first.HourBeforeID {
			t.Fatal("old hour-before entry survived the reschedule")
		}
	}
}

func TestRescheduleIneligibleTaskOnlyCancels(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	task := newTask(1, model.TaskStatusNew, at(3*rules.Day), nil)
	svc.ScheduleAllTaskReminders(ctx, task)

	task.Status = model.TaskStatusInProgress
	if _, ok := svc.RescheduleTaskReminders(ctx, task); ok {
		t.Fatal("expected no summary for ineligible task")
	}
	if len(listFor(t, mem, task.ID)) != 0 {
		t.Fatal("expected previous reminders to be cancelled")
	}
}

func TestBulkRescheduleBatches(t *testing.T) {
	svc, _ := newTestService(t)
	tasks := make([]model.Task, 0, 12)
	for i := int64(1); i <= 12; i++ {
		status := model.TaskStatusNew
		if i%6 == 0 {
			status = model.TaskStatusCompleted
		}
		tasks = append(tasks, newTask(i, status, at(3*rules.Day), nil))
	}

	res := svc.BulkRescheduleTasks(context.Background(), tasks)
	if len(res.Batches) != 3 || res.Batches[0] != 5 || res.Batches[1] != 5 || res.Batches[2] != 2 {
		t.Fatalf("unexpected batches: %v", res.Batches)
	}
	if res.Success+res.Failed != 12 {
		t.Fatalf("expected 12 results, got %+v", res)
	}
	if res.Failed != 2 {
		t.Fatalf("expected the two completed tasks to fail, got %+v", res)
	}
}

func TestScheduleRemindersForTaskListBranches(t *testing.T) {
	svc, mem := newTestService(t)
	tasks := []model.Task{
		newTask(1, model.TaskStatusNew, at(3*rules.Day), nil),     // week branch: 1 + 3 + 1 + 1
		newTask(2, model.TaskStatusNew, at(30*time.Minute), nil),  // immediate start
		newTask(3, model.TaskStatusNew, at(10*rules.Day), nil),    // day-before + hour-before
		newTask(4, model.TaskStatusNew, nil, at(-rules.Day)),      // overdue
		newTask(5, model.TaskStatusCompleted, at(rules.Day), nil), // ineligible
		newTask(6, model.TaskStatusNew, nil, nil),                 // no dates
	}

	n := svc.ScheduleRemindersForTaskList(context.Background(), tasks)
	if n != 10 {
		t.Fatalf("expected 10 notifications, got %d", n)
	}
	if mem.Len() != 10 {
		t.Fatalf("expected 10 store entries, got %d", mem.Len())
	}
	immediate := listFor(t, mem, 2)
	if len(immediate) != 1 || immediate[0].Data.Type != string(model.KindStartImmediate) {
		t.Fatalf("unexpected entries for task 2: %+v", immediate)
	}
}

func TestScheduleRemindersForTaskListReentrancy(t *testing.T) {
	svc, mem := newTestService(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mem.ScheduleErr = func(store.Request) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil
	}

	done := make(chan int, 1)
	go func() {
		done <- svc.ScheduleRemindersForTaskList(context.Background(), []model.Task{
			newTask(1, model.TaskStatusNew, at(3*rules.Day), nil),
		})
	}()

	<-started
	if !svc.Processing() {
		t.Fatal("expected a pass in flight")
	}
	if n := svc.ScheduleRemindersForTaskList(context.Background(), []model.Task{newTask(9, model.TaskStatusNew, at(rules.Day), nil)}); n != 0 {
		t.Fatalf("re-entrant call should return 0, got %d", n)
	}
	if pending := svc.PendingTaskIDs(); len(pending) != 1 || pending[0] != 9 {
		t.Fatalf("expected task 9 pending, got %v", pending)
	}

	close(release)
	if n := <-done; n == 0 {
		t.Fatal("expected the first pass to schedule notifications")
	}
	if svc.Processing() {
		t.Fatal("expected pass to be finished")
	}
	if len(listFor(t, mem, 9)) != 0 {
		t.Fatal("pending task must not be retried automatically")
	}
	if pending := svc.PendingTaskIDs(); len(pending) != 0 {
		t.Fatalf("expected pending set to be cleared after the pass, got %v", pending)
	}
}

func TestHasExistingNotificationsFallsBackToStore(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	summary, _ := svc.ScheduleAllTaskReminders(ctx, newTask(1, model.TaskStatusNew, nil, at(-rules.Day)))

	if !svc.HasExistingNotifications(ctx, 1) {
		t.Fatal("expected cache hit")
	}
	if !svc.ClearCacheForTask(1) {
		t.Fatal("expected cache entry to exist")
	}
	if !svc.HasExistingNotifications(ctx, 1) {
		t.Fatal("expected store scan to find the entry")
	}
	mem.Fire(summary.OverdueID)
	if svc.HasExistingNotifications(ctx, 1) {
		t.Fatal("expected nothing after delivery")
	}
}

func TestCacheReportFindsMismatches(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	summary, _ := svc.ScheduleAllTaskReminders(ctx, newTask(1, model.TaskStatusNew, at(3*rules.Day), nil))
	mem.Fire(summary.HourBeforeID)
	if _, err := mem.Schedule(ctx, store.Request{Delay: time.Hour, Data: store.Data{TaskID: 5, Type: "overdue"}}); err != nil {
		t.Fatalf("schedule outside the service: %v", err)
	}

	rep := svc.CacheReport(ctx)
	if !rep.StoreAvailable || len(rep.Tasks) != 2 || rep.Mismatches() != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := rep.Tasks[0].MissingInStore; len(got) != 1 || got[0] != summary.HourBeforeID {
		t.Fatalf("expected fired id missing in store, got %v", got)
	}
	if got := rep.Tasks[1].MissingInCache; len(got) != 1 {
		t.Fatalf("expected foreign id missing in cache, got %v", got)
	}
	if md := rep.Markdown(); !strings.Contains(md, "## Task 5") {
		t.Fatalf("markdown is missing task section:\n%s", md)
	}
}
