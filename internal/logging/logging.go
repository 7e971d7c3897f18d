// Package logging builds the level-filtered loggers used across the
// application. Messages carry a "[LEVEL]" prefix, e.g.
//
//	log.Printf("[ERROR] Cannot cancel reminders for task %d: %s\n", id, err)
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/logutils"
)

var Levels = []logutils.LogLevel{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

const DefaultLevel = "INFO"

// ValidLevel reports whether lvl names one of Levels.
func ValidLevel(lvl string) bool {
	want := logutils.LogLevel(strings.ToUpper(strings.TrimSpace(lvl)))
	for _, l := range Levels {
		if l == want {
			return true
		}
	}
	return false
}

// New returns a logger for the given domain writing to w, dropping anything
// below minLevel.
func New(w io.Writer, domain, minLevel string) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	if minLevel == "" {
		minLevel = DefaultLevel
	}
	if !ValidLevel(minLevel) {
		return nil, fmt.Errorf("logging: invalid level %q", minLevel)
	}
	filter := &logutils.LevelFilter{
		Levels:   Levels,
		MinLevel: logutils.LogLevel(strings.ToUpper(strings.TrimSpace(minLevel))),
		Writer:   w,
	}
	return log.New(filter, domain+" ", log.Ldate|log.Ltime|log.Lshortfile), nil
}

// Discard is the logger used when a component is constructed without one.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger if l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
