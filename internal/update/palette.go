package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandeepkv93/taskremind/internal/commands"
	"github.com/sandeepkv93/taskremind/internal/model"
	"github.com/sandeepkv93/taskremind/internal/store"
)

// TaskActionMsg reports the outcome of a per-task palette command.
type TaskActionMsg struct {
	Text      string
	IsError   bool
	Scheduled []store.Scheduled
}

func (m Model) openPalette() Model {
	m.Palette.Active = true
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.Status = StatusBar{Text: "command palette active"}
	return m
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m = m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	}
	if msg.Type == tea.KeyRunes {
		m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
		m.Palette.Input = m.commandInput.Value()
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m Model) closePalette() Model {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
	return m
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m = m.closePalette()
	parsed, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	if m.engine == nil || m.backend == nil {
		m.Status = StatusBar{Text: ErrNotConnected.Error(), IsError: true}
		return m, nil
	}

	var next tea.Cmd
	res, err := commands.Execute(parsed, commands.Handlers{
		Refresh: func() (commands.Result, error) {
			next = m.refreshCmd()
			return commands.Result{Message: "refreshing tasks"}, nil
		},
		Show: func(s commands.ShowArgs) (commands.Result, error) {
			switch s.Subject {
			case commands.SubjectSchedule:
				m.CurrentView = ViewSchedule
			case commands.SubjectReport:
				m.CurrentView = ViewReport
				next = m.reportCmd()
			default:
				m.CurrentView = ViewTasks
			}
			return commands.Result{Message: fmt.Sprintf("showing %s", s.Subject)}, nil
		},
		Reschedule: func(a commands.TaskArgs) (commands.Result, error) {
			task, ok := m.findTask(a.TaskID)
			if !ok {
				return commands.Result{}, unknownTask(a.TaskID)
			}
			next = m.rescheduleTaskCmd(task)
			return commands.Result{Message: fmt.Sprintf("rescheduling task %d", task.ID)}, nil
		},
		Cancel: func(a commands.CancelArgs) (commands.Result, error) {
			if a.All {
				next = m.logoutCmd()
				return commands.Result{Message: "cancelling all reminders"}, nil
			}
			next = m.cancelTaskCmd(a.TaskID)
			return commands.Result{Message: fmt.Sprintf("cancelling reminders for task %d", a.TaskID)}, nil
		},
		Check: func(a commands.TaskArgs) (commands.Result, error) {
			ids := m.engine.CheckTaskCache(a.TaskID)
			if len(ids) == 0 {
				return commands.Result{Message: fmt.Sprintf("task %d: nothing cached", a.TaskID)}, nil
			}
			return commands.Result{Message: fmt.Sprintf("task %d: %d cached (%s)", a.TaskID, len(ids), strings.Join(ids, ", "))}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	if next == nil {
		m.Status = StatusBar{Text: res.Message}
		return m, nil
	}
	return m.startAction(res.Message, next)
}

func (m Model) findTask(id int64) (model.Task, bool) {
	for _, t := range m.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func unknownTask(id int64) error {
	return &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("task %d is not loaded", id)}
}

func (m Model) rescheduleTaskCmd(task model.Task) tea.Cmd {
	engine, timeout := m.engine, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		sum, ok := engine.RescheduleTaskReminders(ctx, task)
		msg := TaskActionMsg{Scheduled: engine.ScheduledNotifications(ctx)}
		if !ok {
			msg.Text = fmt.Sprintf("task %d was not rescheduled", task.ID)
			msg.IsError = true
			return msg
		}
		msg.Text = fmt.Sprintf("task %d rescheduled: %d notifications", task.ID, sum.Total())
		return msg
	}
}

func (m Model) cancelTaskCmd(taskID int64) tea.Cmd {
	engine, timeout := m.engine, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n := engine.CancelTaskReminders(ctx, taskID)
		return TaskActionMsg{
			Text:      fmt.Sprintf("task %d: %d notifications cancelled", taskID, n),
			Scheduled: engine.ScheduledNotifications(ctx),
		}
	}
}
