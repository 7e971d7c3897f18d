package update

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/platform"
	"github.com/sandeepkv93/taskremind/internal/reminders"
	"github.com/sandeepkv93/taskremind/internal/rules"
	"github.com/sandeepkv93/taskremind/internal/session"
	"github.com/sandeepkv93/taskremind/internal/store"
)

type View string

const (
	ViewTasks    View = "Tasks"
	ViewSchedule View = "Schedule"
	ViewReport   View = "Report"
)

const (
	DefaultActionTimeout = 30 * time.Second
	maxDeliveryLog       = 20
)

// Backend is the session the TUI drives.
type Backend interface {
	Refresh(ctx context.Context) (session.Outcome, error)
	Logout(ctx context.Context) bool
}

// Engine is the part of the scheduling engine the TUI inspects.
type Engine interface {
	BulkRescheduleTasks(ctx context.Context, tasks []model.Task) reminders.BulkResult
	ScheduledNotifications(ctx context.Context) []store.Scheduled
	CacheReport(ctx context.Context) reminders.Report
	Evaluator() rules.Evaluator
	RescheduleTaskReminders(ctx context.Context, task model.Task) (reminders.Summary, bool)
	CancelTaskReminders(ctx context.Context, taskID int64) int
	CheckTaskCache(taskID int64) []string
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Tasks     string
	Schedule  string
	Report    string
	Refresh   string
	Bulk      string
	CancelAll string
	Help      string
	Quit      string
}

type Model struct {
	CurrentView View
	Tasks       []model.Task
	Scheduled   []store.Scheduled
	Report      reminders.Report
	ReportView  string
	Deliveries  []platform.Delivery
	LastRefresh time.Time
	HelpVisible bool
	Palette     PaletteState
	Busy        bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	backend Backend
	engine  Engine
	timeout time.Duration
	now     func() time.Time

	taskTable     table.Model
	scheduleTable table.Model
	commandInput  textinput.Model
	busySpinner   spinner.Model
	helpModel     help.Model
}

type PaletteState struct {
	Active bool
	Input  string
}

type Options struct {
	ActionTimeout time.Duration
	Now           func() time.Time
}

type SwitchViewMsg struct {
	View View
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

// RefreshedMsg carries a session refresh together with the platform
// schedule observed right after it.
type RefreshedMsg struct {
	Outcome   session.Outcome
	Scheduled []store.Scheduled
	Err       error
}

type BulkDoneMsg struct {
	Result    reminders.BulkResult
	Scheduled []store.Scheduled
}

type ReportMsg struct {
	Report reminders.Report
}

type LoggedOutMsg struct {
	OK bool
}

// DeliveryMsg reports a notification fired by the platform scheduler.
type DeliveryMsg struct {
	Delivery platform.Delivery
}

func NewModel(backend Backend, engine Engine, opts Options) Model {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := Model{
		CurrentView: ViewTasks,
		Keys: GlobalKeyMap{
			Tasks:     "1",
			Schedule:  "2",
			Report:    "3",
			Refresh:   "r",
			Bulk:      "b",
			CancelAll: "x",
			Help:      "?",
			Quit:      "q",
		},
		backend: backend,
		engine:  engine,
		timeout: opts.ActionTimeout,
		now:     opts.Now,
	}
	m.initBubbleComponents()
	m.syncBubbleData()
	return m
}

func (m *Model) initBubbleComponents() {
	m.taskTable = table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 5},
			{Title: "Title", Width: 18},
			{Title: "Status", Width: 12},
			{Title: "Start", Width: 11},
			{Title: "N", Width: 3},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	m.scheduleTable = table.New(
		table.WithColumns([]table.Column{
			{Title: "When", Width: 16},
			{Title: "Task", Width: 5},
			{Title: "Type", Width: 22},
			{Title: "Pri", Width: 4},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 128
	m.commandInput.Width = 48

	m.busySpinner = spinner.New()
	m.busySpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
}

func (m *Model) setTasks(tasks []model.Task) {
	sorted := make([]model.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	m.Tasks = sorted
}

func (m *Model) setScheduled(items []store.Scheduled) {
	sorted := make([]store.Scheduled, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TriggerTime.Equal(sorted[j].TriggerTime) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].TriggerTime.Before(sorted[j].TriggerTime)
	})
	m.Scheduled = sorted
}

func (m *Model) recordDelivery(d platform.Delivery) {
	m.Deliveries = append(m.Deliveries, d)
	if len(m.Deliveries) > maxDeliveryLog {
		m.Deliveries = m.Deliveries[len(m.Deliveries)-maxDeliveryLog:]
	}
	kept := make([]store.Scheduled, 0, len(m.Scheduled))
	for _, item := range m.Scheduled {
		if item.ID != d.ID {
			kept = append(kept, item)
		}
	}
	m.Scheduled = kept
}

// selectedTask returns the task under the table cursor.
func (m Model) selectedTask() (model.Task, bool) {
	idx := m.taskTable.Cursor()
	if idx < 0 || idx >= len(m.Tasks) {
		return model.Task{}, false
	}
	return m.Tasks[idx], true
}

func (m Model) scheduledByTask() map[int64][]store.Scheduled {
	return store.GroupByTask(m.Scheduled)
}
