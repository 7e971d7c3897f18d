// Package commands parses and dispatches the TUI command palette, e.g.
// "/reschedule 42" or "/show schedule".
package commands

import (
	"fmt"
	"strconv"
	"strings"
)

type Type string

const (
	TypeRefresh    Type = "refresh"
	TypeShow       Type = "show"
	TypeReschedule Type = "reschedule"
	TypeCancel     Type = "cancel"
	TypeCheck      Type = "check"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Subjects accepted by "show".
const (
	SubjectTasks    = "tasks"
	SubjectSchedule = "schedule"
	SubjectReport   = "report"
)

type ShowArgs struct {
	Subject string
}

type TaskArgs struct {
	TaskID int64
}

// CancelArgs targets one task, or every reminder when All is set.
type CancelArgs struct {
	TaskID int64
	All    bool
}

type Command struct {
	Type       Type
	Raw        string
	Show       *ShowArgs
	Reschedule *TaskArgs
	Cancel     *CancelArgs
	Check      *TaskArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeRefresh:
		return Command{Type: TypeRefresh, Raw: input}, nil
	case TypeShow:
		return parseShow(input, args)
	case TypeReschedule:
		id, err := parseTaskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeReschedule, Raw: input, Reschedule: &TaskArgs{TaskID: id}}, nil
	case TypeCancel:
		return parseCancel(input, args)
	case TypeCheck:
		id, err := parseTaskID(head, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Type: TypeCheck, Raw: input, Check: &TaskArgs{TaskID: id}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseShow(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "show requires a subject"}
	}
	subject := strings.ToLower(args[0])
	switch subject {
	case SubjectTasks, SubjectSchedule, SubjectReport:
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown subject: %s", subject)}
	}
	return Command{Type: TypeShow, Raw: raw, Show: &ShowArgs{Subject: subject}}, nil
}

func parseCancel(raw string, args []string) (Command, error) {
	if len(args) == 1 && strings.EqualFold(args[0], "all") {
		return Command{Type: TypeCancel, Raw: raw, Cancel: &CancelArgs{All: true}}, nil
	}
	id, err := parseTaskID(string(TypeCancel), args)
	if err != nil {
		return Command{}, err
	}
	return Command{Type: TypeCancel, Raw: raw, Cancel: &CancelArgs{TaskID: id}}, nil
}

func parseTaskID(head string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: head + " requires a task id"}
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid task id: %s", args[0])}
	}
	return id, nil
}
