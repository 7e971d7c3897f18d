package update

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/taskremind/internal/model"
)

var ErrNotConnected = errors.New("update: no session attached")

func (m Model) refreshCmd() tea.Cmd {
	backend, engine, timeout := m.backend, m.engine, m.timeout
	if backend == nil || engine == nil {
		return errorCmd(ErrNotConnected)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := backend.Refresh(ctx)
		return RefreshedMsg{Outcome: out, Err: err, Scheduled: engine.ScheduledNotifications(ctx)}
	}
}

// bulkCmd reschedules every task that can carry reminders.
func (m Model) bulkCmd() tea.Cmd {
	engine, timeout := m.engine, m.timeout
	if engine == nil {
		return errorCmd(ErrNotConnected)
	}
	tasks := make([]model.Task, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		if t.Eligible() && t.HasSchedule() {
			tasks = append(tasks, t)
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res := engine.BulkRescheduleTasks(ctx, tasks)
		return BulkDoneMsg{Result: res, Scheduled: engine.ScheduledNotifications(ctx)}
	}
}

func (m Model) reportCmd() tea.Cmd {
	engine, timeout := m.engine, m.timeout
	if engine == nil {
		return errorCmd(ErrNotConnected)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ReportMsg{Report: engine.CacheReport(ctx)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	backend, timeout := m.backend, m.timeout
	if backend == nil {
		return errorCmd(ErrNotConnected)
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return LoggedOutMsg{OK: backend.Logout(ctx)}
	}
}

func errorCmd(err error) tea.Cmd {
	return func() tea.Msg { return AppErrorMsg{Err: err} }
}
