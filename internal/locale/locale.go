// Package locale holds the message catalogs used to render reminder
// notifications, including the per-language rule for pluralising day counts.
package locale

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownLocale = errors.New("locale: unknown locale")

const Default = "ru"

// DayWord returns the correctly inflected word for "day" given a count.
type DayWord func(n int) string

type Catalog struct {
	Name    string
	DayWord DayWord

	WeekBeforeTitle string
	WeekBeforeBody  string // %s title
	DailyTitle      string
	DailyBody       string // %s title, %d days, %s day word
	DayBeforeTitle  string
	DayBeforeBody   string // %s title
	HourBeforeTitle string
	HourBeforeBody  string // %s title
	OverdueTitle    string
	OverdueBody     string // %s title, %d days, %s day word
	ImmediateTitle  string
	ImmediateBody   string // %s title, %s time-until text

	AlreadyStarted   string
	WithinHour       string // %d minutes
	WithinDay        string // %d hours
	InDays           string // %d days, %s day word
	ReminderChannel  string
	PermissionDenied string
}

// RussianDayWord implements the three-bucket rule: 1, 2-4, everything else.
func RussianDayWord(n int) string {
	switch {
	case n == 1:
		return "день"
	case n >= 2 && n <= 4:
		return "дня"
	default:
		return "дней"
	}
}

func EnglishDayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

var catalogs = map[string]Catalog{
	"ru": {
		Name:             "ru",
		DayWord:          RussianDayWord,
		WeekBeforeTitle:  "📅 Задача через неделю",
		WeekBeforeBody:   "Через неделю начинается: \"%s\"",
		DailyTitle:       "📋 Напоминание о задаче",
		DailyBody:        "До начала \"%s\" осталось %d %s",
		DayBeforeTitle:   "📅 Напоминание о задаче",
		DayBeforeBody:    "Завтра начинается: \"%s\"",
		HourBeforeTitle:  "⏰ Скоро начало задачи",
		HourBeforeBody:   "Через час начинается: \"%s\"",
		OverdueTitle:     "🚨 Задача просрочена!",
		OverdueBody:      "Задача \"%s\" просрочена на %d %s",
		ImmediateTitle:   "🔔 Задача скоро начнется!",
		ImmediateBody:    "Скоро начинается: \"%s\" (%s)",
		AlreadyStarted:   "уже началась",
		WithinHour:       "менее чем через час (%d мин)",
		WithinDay:        "менее чем через день (%d ч)",
		InDays:           "через %d %s",
		ReminderChannel:  "Напоминания о задачах",
		PermissionDenied: "Уведомления отключены",
	},
	"en": {
		Name:             "en",
		DayWord:          EnglishDayWord,
		WeekBeforeTitle:  "📅 Task in a week",
		WeekBeforeBody:   "Starting in a week: \"%s\"",
		DailyTitle:       "📋 Task reminder",
		DailyBody:        "\"%s\" starts in %d %s",
		DayBeforeTitle:   "📅 Task reminder",
		DayBeforeBody:    "Starting tomorrow: \"%s\"",
		HourBeforeTitle:  "⏰ Task starts soon",
		HourBeforeBody:   "Starting in an hour: \"%s\"",
		OverdueTitle:     "🚨 Task overdue!",
		OverdueBody:      "Task \"%s\" is overdue by %d %s",
		ImmediateTitle:   "🔔 Task starting soon!",
		ImmediateBody:    "Starting soon: \"%s\" (%s)",
		AlreadyStarted:   "already started",
		WithinHour:       "in less than an hour (%d min)",
		WithinDay:        "in less than a day (%d h)",
		InDays:           "in %d %s",
		ReminderChannel:  "Task reminders",
		PermissionDenied: "Notifications are disabled",
	},
}

// Lookup returns the catalog registered under name. Matching ignores case
// and region suffixes, so "ru_RU" and "RU" both resolve to "ru".
func Lookup(name string) (Catalog, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexAny(key, "_-"); i > 0 {
		key = key[:i]
	}
	cat, ok := catalogs[key]
	if !ok {
		return Catalog{}, fmt.Errorf("%w: %q", ErrUnknownLocale, name)
	}
	return cat, nil
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Catalog {
	cat, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return cat
}

func Names() []string {
	out := make([]string, 0, len(catalogs))
	for name := range catalogs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Days formats a count followed by its inflected day word.
func (c Catalog) Days(n int) string {
	return fmt.Sprintf("%d %s", n, c.DayWord(n))
}
