package update

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/reconcile"
	"github.com/sandeepkv93/taskremind/internal/taskapi"
	"github.com/sandeepkv93/taskremind/internal/views"
)

const timeLayout = "2006-01-02 15:04"

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		next, cmd := m.handleKey(typed)
		next.syncBubbleData()
		return next, cmd
	case spinner.TickMsg:
		if m.Busy {
			var cmd tea.Cmd
			m.busySpinner, cmd = m.busySpinner.Update(typed)
			return m, cmd
		}
	case SwitchViewMsg:
		if isKnownView(typed.View) {
			m.CurrentView = typed.View
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.Busy = false
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	case RefreshedMsg:
		m.onRefreshed(typed)
		m.syncBubbleData()
		return m, nil
	case BulkDoneMsg:
		m.Busy = false
		m.setScheduled(typed.Scheduled)
		m.Status = StatusBar{
			Text:    fmt.Sprintf("bulk reschedule: %d ok, %d failed in %d batches", typed.Result.Success, typed.Result.Failed, len(typed.Result.Batches)),
			IsError: typed.Result.Failed > 0,
		}
		m.syncBubbleData()
		return m, nil
	case ReportMsg:
		m.Busy = false
		m.Report = typed.Report
		m.ReportView = views.RenderMarkdown(typed.Report.Markdown())
		m.Status = StatusBar{Text: fmt.Sprintf("cache report: %d tasks, %d mismatches", len(typed.Report.Tasks), typed.Report.Mismatches())}
		return m, nil
	case LoggedOutMsg:
		m.Busy = false
		m.Tasks = nil
		m.Scheduled = nil
		if typed.OK {
			m.Status = StatusBar{Text: "logged out, all reminders cancelled"}
		} else {
			m.Status = StatusBar{Text: "logged out, cancelling reminders failed", IsError: true}
		}
		m.syncBubbleData()
		return m, nil
	case TaskActionMsg:
		m.Busy = false
		m.setScheduled(typed.Scheduled)
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		m.syncBubbleData()
		return m, nil
	case DeliveryMsg:
		m.recordDelivery(typed.Delivery)
		m.Status = StatusBar{Text: fmt.Sprintf("reminder fired: %s (task %d)", typed.Delivery.Title, typed.Delivery.Data.TaskID)}
		m.syncBubbleData()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.Palette.Active {
		if msg.String() == "ctrl+c" {
			m.Quitting = true
			return m, tea.Quit
		}
		return m.handlePaletteKey(msg)
	}

	switch msg.String() {
	case "/":
		return m.openPalette(), nil
	case m.Keys.Tasks:
		m.CurrentView = ViewTasks
		return m, nil
	case m.Keys.Schedule:
		m.CurrentView = ViewSchedule
		return m, nil
	case m.Keys.Report:
		m.CurrentView = ViewReport
		return m, nil
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
		if m.HelpVisible {
			m.Status = StatusBar{Text: "help shown"}
		} else {
			m.Status = StatusBar{Text: "help hidden"}
		}
		return m, nil
	case m.Keys.Refresh:
		return m.startAction("refreshing tasks", m.refreshCmd())
	case m.Keys.Bulk:
		return m.startAction("rescheduling all tasks", m.bulkCmd())
	case "c":
		m.CurrentView = ViewReport
		return m.startAction("building cache report", m.reportCmd())
	case m.Keys.CancelAll:
		return m.startAction("cancelling all reminders", m.logoutCmd())
	case "ctrl+c", m.Keys.Quit:
		m.Quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	switch m.CurrentView {
	case ViewTasks:
		m.taskTable, cmd = m.taskTable.Update(msg)
	case ViewSchedule:
		m.scheduleTable, cmd = m.scheduleTable.Update(msg)
	}
	return m, cmd
}

// startAction runs cmd unless another action is in flight.
func (m Model) startAction(label string, cmd tea.Cmd) (Model, tea.Cmd) {
	if m.Busy {
		m.Status = StatusBar{Text: "busy, try again shortly", IsError: true}
		return m, nil
	}
	m.Busy = true
	m.Status = StatusBar{Text: label}
	return m, tea.Batch(m.busySpinner.Tick, cmd)
}

func (m *Model) onRefreshed(msg RefreshedMsg) {
	m.Busy = false
	if msg.Err != nil {
		m.LastError = msg.Err
		if errors.Is(msg.Err, taskapi.ErrUnauthorized) {
			m.Tasks = nil
			m.Scheduled = nil
			m.Status = StatusBar{Text: "session expired, reminders cleared", IsError: true}
			return
		}
		m.Status = StatusBar{Text: fmt.Sprintf("refresh failed: %v", msg.Err), IsError: true}
		return
	}

	m.LastError = nil
	m.LastRefresh = msg.Outcome.At
	m.setTasks(msg.Outcome.Tasks)
	m.setScheduled(msg.Scheduled)
	if msg.Outcome.Initial {
		m.Status = StatusBar{Text: fmt.Sprintf("loaded %d tasks, %d notifications scheduled", len(m.Tasks), msg.Outcome.Scheduled)}
		return
	}
	m.Status = StatusBar{Text: describeResult(msg.Outcome.Result)}
}

func describeResult(r reconcile.Result) string {
	ch := r.Changes
	if len(ch.Added)+len(ch.Deleted)+len(ch.TimeChanged)+len(ch.StatusChanged) == 0 {
		return fmt.Sprintf("refreshed: %d tasks unchanged", len(ch.Unchanged))
	}
	return fmt.Sprintf("refreshed: +%d -%d ~%d status:%d (scheduled %d, rescheduled %d, cancelled %d, stopped %d)",
		len(ch.Added), len(ch.Deleted), len(ch.TimeChanged), len(ch.StatusChanged),
		r.Scheduled, r.Rescheduled, r.Cancelled, r.Stopped)
}

func (m *Model) syncBubbleData() {
	counts := m.scheduledByTask()
	taskRows := make([]table.Row, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		taskRows = append(taskRows, table.Row{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			string(t.Status),
			formatDate(t.StartDate, "2006-01-02"),
			strconv.Itoa(len(counts[t.ID])),
		})
	}
	m.taskTable.SetRows(taskRows)
	if m.taskTable.Cursor() >= len(taskRows) {
		m.taskTable.SetCursor(max(len(taskRows)-1, 0))
	}

	schedRows := make([]table.Row, 0, len(m.Scheduled))
	for _, item := range m.Scheduled {
		schedRows = append(schedRows, table.Row{
			item.TriggerTime.Format(timeLayout),
			strconv.FormatInt(item.Data.TaskID, 10),
			item.Data.Type,
			string(item.Priority),
		})
	}
	m.scheduleTable.SetRows(schedRows)
	if m.scheduleTable.Cursor() >= len(schedRows) {
		m.scheduleTable.SetCursor(max(len(schedRows)-1, 0))
	}
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	leftPane := ""
	rightPane := ""
	switch m.CurrentView {
	case ViewTasks:
		leftPane = views.RenderTasksPanel(views.TasksPanelData{
			TableView: m.taskTable.View(),
			Total:     len(m.Tasks),
			Eligible:  m.eligibleCount(),
		})
		rightPane = m.renderTaskDetail() + m.renderHelpIfVisible()
	case ViewSchedule:
		leftPane = views.RenderSchedulePanel(views.SchedulePanelData{
			TableView: m.scheduleTable.View(),
			Total:     len(m.Scheduled),
		})
		rightPane = m.renderSelectedNotification() + m.renderHelpIfVisible()
	case ViewReport:
		leftPane = views.RenderReportPanel(views.ReportPanelData{
			Markdown:   m.ReportView,
			Tasks:      len(m.Report.Tasks),
			Mismatches: m.Report.Mismatches(),
			Available:  m.Report.StoreAvailable,
		})
		rightPane = m.renderHelpIfVisible()
	}

	if m.Palette.Active {
		rightPane = views.RenderCommandPalette(m.commandInput.View()) + "\n" + rightPane
	}

	notification := views.RenderDeliveries(m.deliveryData())
	if m.Busy {
		notification = strings.TrimSpace(strings.Join([]string{notification, "working: " + m.busySpinner.View()}, "\n"))
	}

	refreshed := "never"
	if !m.LastRefresh.IsZero() {
		refreshed = m.LastRefresh.Format("15:04:05")
	}
	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("taskremind | view: %s | tasks: %d | scheduled: %d | refreshed: %s", m.CurrentView, len(m.Tasks), len(m.Scheduled), refreshed),
		LeftPane:     leftPane,
		RightPane:    rightPane,
		StatusLine:   status,
		Notification: notification,
		Footer: fmt.Sprintf("keys: %s tasks | %s schedule | %s report | %s refresh | %s bulk | c cache | / cmd | %s cancel all | %s help | %s quit",
			m.Keys.Tasks, m.Keys.Schedule, m.Keys.Report, m.Keys.Refresh, m.Keys.Bulk, m.Keys.CancelAll, m.Keys.Help, m.Keys.Quit),
	})
}

func (m Model) renderTaskDetail() string {
	task, ok := m.selectedTask()
	if !ok {
		return views.RenderTaskDetail(views.TaskDetailData{})
	}
	data := views.TaskDetailData{
		Selected: true,
		ID:       task.ID,
		Title:    task.Title,
		Status:   string(task.Status),
		Start:    formatDate(task.StartDate, timeLayout),
		Due:      formatDate(task.DueDate, timeLayout),
		Eligible: task.Eligible(),
	}
	if m.engine != nil {
		eval := m.engine.Evaluator()
		now := m.now()
		if task.StartDate != nil {
			data.Until = eval.TimeUntilStart(*task.StartDate, now)
		}
		for _, d := range eval.Plan(task, now) {
			when := "now"
			if !d.Immediate {
				when = d.Trigger.Format(timeLayout)
			}
			data.Plan = append(data.Plan, fmt.Sprintf("%s %s", when, d.Tag()))
		}
	}
	for _, item := range m.scheduledByTask()[task.ID] {
		data.Notifications = append(data.Notifications, fmt.Sprintf("%s %s", item.TriggerTime.Format(timeLayout), item.Data.Type))
	}
	return views.RenderTaskDetail(data)
}

func (m Model) renderSelectedNotification() string {
	idx := m.scheduleTable.Cursor()
	if idx < 0 || idx >= len(m.Scheduled) {
		return views.RenderNotificationDetail(views.NotificationDetailData{})
	}
	item := m.Scheduled[idx]
	kind, _, _ := model.ParseTag(item.Data.Type)
	return views.RenderNotificationDetail(views.NotificationDetailData{
		Selected:  true,
		ID:        item.ID,
		TaskID:    item.Data.TaskID,
		Type:      item.Data.Type,
		Immediate: kind.Immediate(),
		Title:     item.Title,
		Body:      item.Body,
		When:      item.TriggerTime.Format(timeLayout),
		Priority:  string(item.Priority),
	})
}

func (m Model) deliveryData() []views.DeliveryData {
	out := make([]views.DeliveryData, 0, len(m.Deliveries))
	for _, d := range m.Deliveries {
		out = append(out, views.DeliveryData{
			At:     d.FiredAt.Format("15:04:05"),
			TaskID: d.Data.TaskID,
			Title:  d.Title,
		})
	}
	return out
}

func (m Model) eligibleCount() int {
	n := 0
	for _, t := range m.Tasks {
		if t.Eligible() {
			n++
		}
	}
	return n
}

func isKnownView(v View) bool {
	switch v {
	case ViewTasks, ViewSchedule, ViewReport:
		return true
	default:
		return false
	}
}
