package commands

import (
	"errors"
	"testing"
)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"/refresh", TypeRefresh},
		{"show schedule", TypeShow},
		{"/reschedule 42", TypeReschedule},
		{"cancel #7", TypeCancel},
		{"cancel all", TypeCancel},
		{"CHECK 3", TypeCheck},
	}

	for _, tc := range cases {
		cmd, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseArguments(t *testing.T) {
	cmd, err := Parse("cancel #7")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Cancel == nil || cmd.Cancel.TaskID != 7 || cmd.Cancel.All {
		t.Fatalf("unexpected cancel args: %+v", cmd.Cancel)
	}

	cmd, err = Parse("cancel ALL")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cmd.Cancel.All {
		t.Fatalf("expected cancel all, got %+v", cmd.Cancel)
	}

	cmd, err = Parse("show Report")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Show.Subject != SubjectReport {
		t.Fatalf("unexpected subject: %q", cmd.Show.Subject)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]ErrorCode{
		"":                 ErrCodeEmptyInput,
		"/":                ErrCodeEmptyInput,
		"/unknown do x":    ErrCodeUnknownCommand,
		"reschedule":       ErrCodeInvalidArgument,
		"reschedule abc":   ErrCodeInvalidArgument,
		"reschedule 0":     ErrCodeInvalidArgument,
		"check 1 2":        ErrCodeInvalidArgument,
		"show":             ErrCodeInvalidArgument,
		"show calendar":    ErrCodeInvalidArgument,
		"cancel":           ErrCodeInvalidArgument,
		"cancel everybody": ErrCodeInvalidArgument,
	}
	for in, code := range cases {
		_, err := Parse(in)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != code {
			t.Fatalf("parse %q: expected %s, got %v", in, code, err)
		}
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse("/reschedule 42")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(cmd, Handlers{
		Reschedule: func(a TaskArgs) (Result, error) {
			called = true
			if a.TaskID != 42 {
				t.Fatalf("unexpected task id: %d", a.TaskID)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("dispatch failed, called=%v res=%+v", called, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, err := Parse("show tasks")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Execute(cmd, Handlers{})
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected missing handler error, got %v", err)
	}
}
