package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidReminderKind = errors.New("model: invalid reminder kind")

// ReminderKind is the type tag embedded in a scheduled notification payload.
type ReminderKind string

const (
	KindWeekBefore     ReminderKind = "week_before_reminder"
	KindDailyCountdown ReminderKind = "daily_reminder"
	KindDayBefore      ReminderKind = "day_before_reminder"
	KindHourBefore     ReminderKind = "hour_before_reminder"
	KindOverdue        ReminderKind = "overdue"

	KindWeekBeforeImmediate ReminderKind = "week_before_immediate"
	KindDayBeforeImmediate  ReminderKind = "immediate_reminder"
	KindStartImmediate      ReminderKind = "immediate_start"
)

func (k ReminderKind) IsValid() bool {
	switch k {
	case KindWeekBefore, KindDailyCountdown, KindDayBefore, KindHourBefore, KindOverdue,
		KindWeekBeforeImmediate, KindDayBeforeImmediate, KindStartImmediate:
		return true
	default:
		return false
	}
}

// Immediate reports whether the kind is a fire-now variant.
func (k ReminderKind) Immediate() bool {
	switch k {
	case KindWeekBeforeImmediate, KindDayBeforeImmediate, KindStartImmediate:
		return true
	default:
		return false
	}
}

// Tag renders the payload tag. Daily countdown entries carry their day count,
// e.g. "daily_reminder_3days".
func Tag(kind ReminderKind, days int) string {
	if kind == KindDailyCountdown {
		return fmt.Sprintf("%s_%ddays", KindDailyCountdown, days)
	}
	return string(kind)
}

// ParseTag is the inverse of Tag.
func ParseTag(tag string) (ReminderKind, int, error) {
	prefix := string(KindDailyCountdown) + "_"
	if strings.HasPrefix(tag, prefix) && strings.HasSuffix(tag, "days") {
		raw := strings.TrimSuffix(strings.TrimPrefix(tag, prefix), "days")
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidReminderKind, tag)
		}
		return KindDailyCountdown, days, nil
	}
	kind := ReminderKind(tag)
	if !kind.IsValid() || kind == KindDailyCountdown {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidReminderKind, tag)
	}
	return kind, 0, nil
}

// ScheduledReminder is one entry of the platform notification store.
type ScheduledReminder struct {
	ID          string
	TaskID      int64
	Kind        string
	TriggerTime time.Time
	Title       string
	Body        string
}

func (r ScheduledReminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: reminder id is required")
	}
	if r.TaskID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTaskID, r.TaskID)
	}
	if r.TriggerTime.IsZero() {
		return errors.New("model: reminder trigger_time is required")
	}
	if _, _, err := ParseTag(r.Kind); err != nil {
		return err
	}
	return nil
}
