package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFilterDropsBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "reminders", "WARN")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Println("[DEBUG] hidden")
	logger.Println("[ERROR] shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should have been filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "reminders") {
		t.Fatalf("expected error line with domain prefix: %q", out)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(nil, "x", "LOUD"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !ValidLevel("debug") {
		t.Fatal("level matching should ignore case")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected a logger")
	}
}
