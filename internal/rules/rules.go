// Package rules decides which reminders apply to a task at a given instant.
// Nothing here schedules anything; every function is a pure function of the
// task snapshot and the injected current time.
package rules

import (
	"fmt"
	"time"

	"github.com/sandeepkv93/taskremind/internal/locale"
	"github.com/sandeepkv93/taskremind/internal/model"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day

	DefaultReminderHour   = 9
	DefaultImmediateDelay = 2 * time.Second
	DefaultOverdueDelay   = 3 * time.Second
)

// Decision is one reminder the evaluator wants to exist. Immediate decisions
// carry a fixed Delay; scheduled ones carry an absolute Trigger.
type Decision struct {
	TaskID    int64
	Kind      model.ReminderKind
	Days      int
	Trigger   time.Time
	Immediate bool
	Delay     time.Duration
	Title     string
	Body      string
}

func (d Decision) Tag() string {
	return model.Tag(d.Kind, d.Days)
}

type Evaluator struct {
	ReminderHour   int
	Location       *time.Location
	ImmediateDelay time.Duration
	OverdueDelay   time.Duration
	Catalog        locale.Catalog
}

func NewEvaluator(cat locale.Catalog) Evaluator {
	return Evaluator{
		ReminderHour:   DefaultReminderHour,
		Location:       time.Local,
		ImmediateDelay: DefaultImmediateDelay,
		OverdueDelay:   DefaultOverdueDelay,
		Catalog:        cat,
	}
}

// DaysUntil is floor((start - now) / 1 day).
func DaysUntil(start, now time.Time) int {
	return floorDays(start.Sub(now))
}

// IsWithinWeekRange reports whether the task starts between 1 and 7 whole
// days from now.
func IsWithinWeekRange(task model.Task, now time.Time) bool {
	if task.StartDate == nil {
		return false
	}
	days := DaysUntil(*task.StartDate, now)
	return days >= 1 && days <= 7
}

// IsLessThanDayAway reports whether the task starts in (0, 24h].
func IsLessThanDayAway(task model.Task, now time.Time) bool {
	if task.StartDate == nil {
		return false
	}
	diff := task.StartDate.Sub(now)
	return diff > 0 && diff <= Day
}

// WeekBefore evaluates the week-before reminder. When its 09:00 slot has
// already passed the reminder turns into an immediate notification.
func (e Evaluator) WeekBefore(task model.Task, now time.Time) (Decision, bool) {
	if !e.forwardEligible(task) || !IsWithinWeekRange(task, now) {
		return Decision{}, false
	}
	trigger := e.atReminderHour(task.StartDate.In(e.loc()).AddDate(0, 0, -7))
	if !trigger.After(now) {
		return e.immediate(task, model.KindWeekBeforeImmediate, now), true
	}
	return Decision{
		TaskID:  task.ID,
		Kind:    model.KindWeekBefore,
		Trigger: trigger,
		Title:   e.Catalog.WeekBeforeTitle,
		Body:    fmt.Sprintf(e.Catalog.WeekBeforeBody, task.Title),
	}, true
}

// DailyCountdown returns one reminder per remaining day, latest first, with
// already-passed slots skipped.
func (e Evaluator) DailyCountdown(task model.Task, now time.Time) []Decision {
	if !e.forwardEligible(task) || !IsWithinWeekRange(task, now) {
		return nil
	}
	days := DaysUntil(*task.StartDate, now)
	start := task.StartDate.In(e.loc())
	out := make([]Decision, 0, days)
	for d := days; d >= 1; d-- {
		trigger := e.atReminderHour(start.AddDate(0, 0, -d))
		if !trigger.After(now) {
			continue
		}
		out = append(out, Decision{
			TaskID:  task.ID,
			Kind:    model.KindDailyCountdown,
			Days:    d,
			Trigger: trigger,
			Title:   e.Catalog.DailyTitle,
			Body:    fmt.Sprintf(e.Catalog.DailyBody, task.Title, d, e.Catalog.DayWord(d)),
		})
	}
	return out
}

// DayBefore evaluates the day-before reminder; inside the last 24h it turns
// into an immediate notification.
func (e Evaluator) DayBefore(task model.Task, now time.Time) (Decision, bool) {
	if !e.forwardEligible(task) {
		return Decision{}, false
	}
	if IsLessThanDayAway(task, now) {
		return e.immediate(task, model.KindDayBeforeImmediate, now), true
	}
	trigger := e.atReminderHour(task.StartDate.In(e.loc()).AddDate(0, 0, -1))
	if !trigger.After(now) {
		return Decision{}, false
	}
	return Decision{
		TaskID:  task.ID,
		Kind:    model.KindDayBefore,
		Trigger: trigger,
		Title:   e.Catalog.DayBeforeTitle,
		Body:    fmt.Sprintf(e.Catalog.DayBeforeBody, task.Title),
	}, true
}

// HourBefore is skipped entirely inside the last 24h.
func (e Evaluator) HourBefore(task model.Task, now time.Time) (Decision, bool) {
	if !e.forwardEligible(task) || IsLessThanDayAway(task, now) {
		return Decision{}, false
	}
	trigger := task.StartDate.Add(-time.Hour)
	if !trigger.After(now) {
		return Decision{}, false
	}
	return Decision{
		TaskID:  task.ID,
		Kind:    model.KindHourBefore,
		Trigger: trigger,
		Title:   e.Catalog.HourBeforeTitle,
		Body:    fmt.Sprintf(e.Catalog.HourBeforeBody, task.Title),
	}, true
}

// Overdue fires once, shortly after evaluation, for a new task whose due
// date has passed.
func (e Evaluator) Overdue(task model.Task, now time.Time) (Decision, bool) {
	if task.DueDate == nil || !task.Eligible() || !task.DueDate.Before(now) {
		return Decision{}, false
	}
	days := floorDays(now.Sub(*task.DueDate))
	return Decision{
		TaskID:    task.ID,
		Kind:      model.KindOverdue,
		Days:      days,
		Trigger:   now.Add(e.OverdueDelay),
		Immediate: true,
		Delay:     e.OverdueDelay,
		Title:     e.Catalog.OverdueTitle,
		Body:      fmt.Sprintf(e.Catalog.OverdueBody, task.Title, days, e.Catalog.DayWord(days)),
	}, true
}

// StartImmediate is the single fire-now notification used by the task-list
// pass for tasks starting within a day.
func (e Evaluator) StartImmediate(task model.Task, now time.Time) (Decision, bool) {
	if !e.forwardEligible(task) {
		return Decision{}, false
	}
	return e.immediate(task, model.KindStartImmediate, now), true
}

// Plan returns every decision that applies to the task right now.
func (e Evaluator) Plan(task model.Task, now time.Time) []Decision {
	out := make([]Decision, 0, 11)
	if d, ok := e.WeekBefore(task, now); ok {
		out = append(out, d)
	}
	out = append(out, e.DailyCountdown(task, now)...)
	if d, ok := e.DayBefore(task, now); ok {
		out = append(out, d)
	}
	if d, ok := e.HourBefore(task, now); ok {
		out = append(out, d)
	}
	if d, ok := e.Overdue(task, now); ok {
		out = append(out, d)
	}
	return out
}

// TimeUntilStart renders the remaining time before start for immediate
// notifications.
func (e Evaluator) TimeUntilStart(start, now time.Time) string {
	diff := start.Sub(now)
	if diff <= 0 {
		return e.Catalog.AlreadyStarted
	}
	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	switch {
	case hours < 1:
		return fmt.Sprintf(e.Catalog.WithinHour, minutes)
	case hours < 24:
		return fmt.Sprintf(e.Catalog.WithinDay, hours)
	default:
		days := hours / 24
		return fmt.Sprintf(e.Catalog.InDays, days, e.Catalog.DayWord(days))
	}
}

func (e Evaluator) immediate(task model.Task, kind model.ReminderKind, now time.Time) Decision {
	return Decision{
		TaskID:    task.ID,
		Kind:      kind,
		Trigger:   now.Add(e.ImmediateDelay),
		Immediate: true,
		Delay:     e.ImmediateDelay,
		Title:     e.Catalog.ImmediateTitle,
		Body:      fmt.Sprintf(e.Catalog.ImmediateBody, task.Title, e.TimeUntilStart(*task.StartDate, now)),
	}
}

func (e Evaluator) forwardEligible(task model.Task) bool {
	return task.StartDate != nil && task.Eligible()
}

func (e Evaluator) atReminderHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, e.ReminderHour, 0, 0, 0, t.Location())
}

func (e Evaluator) loc() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

func floorDays(d time.Duration) int {
	days := d / Day
	if d < 0 && d%Day != 0 {
		days--
	}
	return int(days)
}
