package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/taskremind/internal/platform"
	"github.com/sandeepkv93/taskremind/internal/store"
)

var _ platform.Journal = (*SQLiteRepository)(nil)
var _ Repository = (*SQLiteRepository)(nil)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "taskremind-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func scheduled(id string, taskID int64, trigger time.Time) store.Scheduled {
	return store.Scheduled{
		ID:          id,
		Title:       "Reminder",
		Body:        "Task starts soon",
		TriggerTime: trigger,
		Priority:    store.PriorityHigh,
		Data: store.Data{
			TaskID:    taskID,
			Type:      "hour_before_reminder",
			TaskTitle: "Install router",
			Timestamp: trigger.Add(-time.Hour),
		},
	}
}

func TestScheduledSaveGetDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	trigger := parseRFC3339(t, "2026-03-02T09:00:00Z")

	item := scheduled("n-1", 7, trigger)
	item.Priority = store.PriorityMax
	item.Data.Type = "overdue"
	item.Data.DaysOverdue = 3
	if err := repo.Save(ctx, item); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Data.TaskID != 7 || got.Data.DaysOverdue != 3 || got.Priority != store.PriorityMax {
		t.Fatalf("unexpected row: %#v", got)
	}
	if !got.TriggerTime.Equal(trigger) || !got.Data.Timestamp.Equal(item.Data.Timestamp) {
		t.Fatalf("times did not round-trip: %#v", got)
	}

	item.Title = "Updated"
	if err := repo.Save(ctx, item); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if got, _ := repo.Get(ctx, item.ID); got.Title != "Updated" {
		t.Fatalf("expected upsert, got %#v", got)
	}

	if err := repo.Delete(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, item.ID); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if _, err := repo.Get(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestScheduledSaveRequiresID(t *testing.T) {
	repo := setupRepo(t)
	if err := repo.Save(context.Background(), store.Scheduled{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestListPendingOrderAndFilters(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := parseRFC3339(t, "2026-03-02T09:00:00Z")

	items := []store.Scheduled{
		scheduled("c", 1, base.Add(2*time.Hour)),
		scheduled("a", 1, base.Add(500*time.Millisecond)),
		scheduled("b", 2, base),
	}
	for _, item := range items {
		if err := repo.Save(ctx, item); err != nil {
			t.Fatalf("save %s: %v", item.ID, err)
		}
	}

	all, err := repo.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "a" || all[2].ID != "c" {
		t.Fatalf("unexpected order: %#v", all)
	}

	forTask, err := repo.ListPending(ctx, PendingFilter{TaskID: 1})
	if err != nil {
		t.Fatalf("list by task: %v", err)
	}
	if len(forTask) != 2 {
		t.Fatalf("expected 2 entries for task 1, got %d", len(forTask))
	}

	cutoff := base.Add(time.Hour)
	due, err := repo.ListPending(ctx, PendingFilter{Before: &cutoff})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 entries before cutoff, got %d", len(due))
	}

	page, err := repo.ListPending(ctx, PendingFilter{Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "a" {
		t.Fatalf("unexpected page: %#v", page)
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if rest, _ := repo.Pending(ctx); len(rest) != 0 {
		t.Fatalf("expected empty schedule, got %d", len(rest))
	}
}

func TestDeliveryLog(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	fired := parseRFC3339(t, "2026-03-02T09:00:00Z")

	records := []DeliveryRecord{
		{NotificationID: "n-1", TaskID: 1, Type: "daily_reminder_2days", Title: "Reminder", TriggerAt: fired, FiredAt: fired},
		{NotificationID: "n-2", TaskID: 2, Type: "overdue", Title: "Overdue", TriggerAt: fired, FiredAt: fired.Add(time.Minute), Error: "bus unavailable"},
	}
	for _, rec := range records {
		if err := repo.RecordDelivery(ctx, rec); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}

	all, err := repo.ListDeliveries(ctx, DeliveryFilter{})
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(all) != 2 || all[0].NotificationID != "n-2" {
		t.Fatalf("expected newest first: %#v", all)
	}

	failed, err := repo.ListDeliveries(ctx, DeliveryFilter{FailedOnly: true})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || !failed[0].Failed() {
		t.Fatalf("unexpected failed deliveries: %#v", failed)
	}

	one, err := repo.ListDeliveries(ctx, DeliveryFilter{TaskID: 1, Limit: 5})
	if err != nil {
		t.Fatalf("list by task: %v", err)
	}
	if len(one) != 1 || one[0].Type != "daily_reminder_2days" || !one[0].FiredAt.Equal(fired) {
		t.Fatalf("unexpected task deliveries: %#v", one)
	}
}

func TestPlatformRestoresFromSQLiteJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	repo, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()

	first := platform.New(platform.Options{Journal: repo})
	id, err := first.Schedule(testContext(t), store.Request{
		Title: "Reminder",
		Data:  store.Data{TaskID: 9, Type: "day_before_reminder"},
		Delay: time.Hour,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	first.Stop()

	second := platform.New(platform.Options{Journal: repo})
	if err := second.Start(testContext(t)); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer second.Stop()

	items, err := second.List(testContext(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != id || items[0].Data.TaskID != 9 {
		t.Fatalf("expected restored entry, got %#v", items)
	}
}
