package views

import (
	"fmt"
	"strings"
)

type TasksPanelData struct {
	TableView string
	Total     int
	Eligible  int
}

type SchedulePanelData struct {
	TableView string
	Total     int
}

type ReportPanelData struct {
	Markdown   string
	Tasks      int
	Mismatches int
	Available  bool
}

type TaskDetailData struct {
	Selected      bool
	ID            int64
	Title         string
	Status        string
	Start         string
	Due           string
	Until         string
	Eligible      bool
	Notifications []string
	Plan          []string
}

type NotificationDetailData struct {
	Selected  bool
	ID        string
	TaskID    int64
	Type      string
	Immediate bool
	Title     string
	Body      string
	When      string
	Priority  string
}

type DeliveryData struct {
	At     string
	TaskID int64
	Title  string
}

type HelpPanelData struct {
	CurrentView string
	Bindings    []string
	HelpView    string
}

func RenderTasksPanel(data TasksPanelData) string {
	var b strings.Builder
	b.WriteString("tasks:\n")
	b.WriteString(fmt.Sprintf("total: %d | eligible: %d\n", data.Total, data.Eligible))
	if data.Total == 0 {
		b.WriteString("(no tasks loaded, press [r] to refresh)")
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderSchedulePanel(data SchedulePanelData) string {
	var b strings.Builder
	b.WriteString("schedule:\n")
	b.WriteString(fmt.Sprintf("pending notifications: %d\n", data.Total))
	if data.Total == 0 {
		b.WriteString("(nothing scheduled)")
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderReportPanel(data ReportPanelData) string {
	if strings.TrimSpace(data.Markdown) == "" {
		return "cache report:\n(press [c] to build the report)"
	}
	var b strings.Builder
	b.WriteString("cache report:\n")
	if !data.Available {
		b.WriteString("platform: unavailable\n")
	}
	b.WriteString(fmt.Sprintf("tasks: %d | mismatches: %d\n", data.Tasks, data.Mismatches))
	b.WriteString(data.Markdown)
	return strings.TrimSpace(b.String())
}

func RenderTaskDetail(data TaskDetailData) string {
	if !data.Selected {
		return "task:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString("task:\n")
	b.WriteString(fmt.Sprintf("id: %d\n", data.ID))
	b.WriteString(fmt.Sprintf("title: %s\n", data.Title))
	b.WriteString(fmt.Sprintf("status: %s %s\n", data.Status, eligibilityBadge(data.Eligible)))
	b.WriteString(fmt.Sprintf("start: %s\n", data.Start))
	b.WriteString(fmt.Sprintf("due: %s\n", data.Due))
	if data.Until != "" {
		b.WriteString(fmt.Sprintf("starts: %s\n", data.Until))
	}
	b.WriteString("\nnotifications:\n")
	if len(data.Notifications) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, n := range data.Notifications {
		b.WriteString("- " + n + "\n")
	}
	if len(data.Plan) > 0 {
		b.WriteString("\nrules now:\n")
		for _, p := range data.Plan {
			b.WriteString("- " + p + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderNotificationDetail(data NotificationDetailData) string {
	if !data.Selected {
		return "notification:\n(no selection)"
	}
	kind := data.Type
	if data.Immediate {
		kind += " [NOW]"
	}
	return fmt.Sprintf("notification:\nid: %s\ntask: %d\ntype: %s\nwhen: %s\npriority: %s\n\n%s\n%s",
		data.ID,
		data.TaskID,
		kind,
		data.When,
		data.Priority,
		data.Title,
		data.Body,
	)
}

func RenderCommandPalette(input string) string {
	return "command: " + input + "\n(refresh | show tasks|schedule|report | reschedule <id> | cancel <id>|all | check <id>)"
}

// RenderDeliveries shows the most recent fired notifications, newest last.
func RenderDeliveries(items []DeliveryData) string {
	if len(items) == 0 {
		return ""
	}
	const shown = 3
	if len(items) > shown {
		items = items[len(items)-shown:]
	}
	var b strings.Builder
	b.WriteString("fired:\n")
	for _, d := range items {
		b.WriteString(fmt.Sprintf("%s task %d: %s\n", d.At, d.TaskID, d.Title))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help (%s view):\n%s\n%s",
		strings.ToLower(data.CurrentView),
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}

func eligibleLabel(ok bool) string {
	if ok {
		return "[ACTIVE]"
	}
	return "[IDLE]"
}

func eligibilityBadge(ok bool) string {
	return badgeStyle(ok).Render(eligibleLabel(ok))
}
