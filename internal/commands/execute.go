package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Refresh    func() (Result, error)
	Show       func(ShowArgs) (Result, error)
	Reschedule func(TaskArgs) (Result, error)
	Cancel     func(CancelArgs) (Result, error)
	Check      func(TaskArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeRefresh:
		if handlers.Refresh == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "refresh handler not configured"}
		}
		return handlers.Refresh()
	case TypeShow:
		if handlers.Show == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "show handler not configured"}
		}
		return handlers.Show(*cmd.Show)
	case TypeReschedule:
		if handlers.Reschedule == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "reschedule handler not configured"}
		}
		return handlers.Reschedule(*cmd.Reschedule)
	case TypeCancel:
		if handlers.Cancel == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "cancel handler not configured"}
		}
		return handlers.Cancel(*cmd.Cancel)
	case TypeCheck:
		if handlers.Check == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "check handler not configured"}
		}
		return handlers.Check(*cmd.Check)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
