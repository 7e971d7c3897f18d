package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sandeepkv93/taskremind/internal/store"
)

// Fixed-width so that lexical order in SQL matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens path, applies migrations and returns the repository.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const pendingColumns = `id, task_id, type, task_title, payload_timestamp, days_overdue, title, body, priority, trigger_at`

func (r *SQLiteRepository) Save(ctx context.Context, item store.Scheduled) error {
	if item.ID == "" {
		return errors.New("storage: notification id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_notifications (`+pendingColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id, type = excluded.type, task_title = excluded.task_title,
			payload_timestamp = excluded.payload_timestamp, days_overdue = excluded.days_overdue,
			title = excluded.title, body = excluded.body, priority = excluded.priority,
			trigger_at = excluded.trigger_at`,
		item.ID, item.Data.TaskID, item.Data.Type, item.Data.TaskTitle,
		nullTime(nonZero(item.Data.Timestamp)), item.Data.DaysOverdue,
		item.Title, item.Body, string(item.Priority),
		mustTime(item.TriggerTime), mustTime(time.Now()),
	)
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (store.Scheduled, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM scheduled_notifications WHERE id = ?`, id)
	item, err := scanScheduled(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Scheduled{}, ErrNotFound
		}
		return store.Scheduled{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_notifications WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_notifications`)
	return err
}

// Pending returns the whole schedule ordered by trigger time.
func (r *SQLiteRepository) Pending(ctx context.Context) ([]store.Scheduled, error) {
	return r.ListPending(ctx, PendingFilter{})
}

func (r *SQLiteRepository) ListPending(ctx context.Context, filter PendingFilter) ([]store.Scheduled, error) {
	query := `SELECT ` + pendingColumns + ` FROM scheduled_notifications`
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.TaskID != 0 {
		where = append(where, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Before != nil {
		where = append(where, "trigger_at < ?")
		args = append(args, mustTime(*filter.Before))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY trigger_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]store.Scheduled, 0)
	for rows.Next() {
		item, scanErr := scanScheduled(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecordDelivery(ctx context.Context, in DeliveryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_log (notification_id, task_id, type, title, trigger_at, fired_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.NotificationID, in.TaskID, in.Type, in.Title,
		mustTime(in.TriggerAt), mustTime(in.FiredAt), in.Error,
	)
	return err
}

// ListDeliveries returns the newest deliveries first.
func (r *SQLiteRepository) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]DeliveryRecord, error) {
	query := `SELECT id, notification_id, task_id, type, title, trigger_at, fired_at, error FROM delivery_log`
	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.TaskID != 0 {
		where = append(where, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.FailedOnly {
		where = append(where, "error <> ''")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY fired_at DESC, id DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DeliveryRecord, 0)
	for rows.Next() {
		rec, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func nonZero(v time.Time) *time.Time {
	if v.IsZero() {
		return nil
	}
	return &v
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScheduled(s scanner) (store.Scheduled, error) {
	var out store.Scheduled
	var stamp sql.NullString
	var priority string
	var trigger string
	if err := s.Scan(&out.ID, &out.Data.TaskID, &out.Data.Type, &out.Data.TaskTitle, &stamp,
		&out.Data.DaysOverdue, &out.Title, &out.Body, &priority, &trigger); err != nil {
		return store.Scheduled{}, err
	}
	triggerAt, err := parseRequiredTime(trigger)
	if err != nil {
		return store.Scheduled{}, err
	}
	timestamp, err := parseNullableTime(stamp)
	if err != nil {
		return store.Scheduled{}, err
	}
	out.TriggerTime = triggerAt
	if timestamp != nil {
		out.Data.Timestamp = *timestamp
	}
	out.Priority = store.Priority(priority)
	return out, nil
}

func scanDelivery(s scanner) (DeliveryRecord, error) {
	var out DeliveryRecord
	var trigger string
	var fired string
	if err := s.Scan(&out.ID, &out.NotificationID, &out.TaskID, &out.Type, &out.Title, &trigger, &fired, &out.Error); err != nil {
		return DeliveryRecord{}, err
	}
	triggerAt, err := parseRequiredTime(trigger)
	if err != nil {
		return DeliveryRecord{}, err
	}
	firedAt, err := parseRequiredTime(fired)
	if err != nil {
		return DeliveryRecord{}, err
	}
	out.TriggerAt = triggerAt
	out.FiredAt = firedAt
	return out, nil
}
