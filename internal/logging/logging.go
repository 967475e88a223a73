// Package logging wraps logrus behind the three-level taxonomy spec.md
// §6 and §7 use throughout: Debug, Normal, Error. Normal maps to
// logrus's Info level — lsyncd's own vocabulary for "routine, always
// worth recording" predates logrus's naming, so this package is the
// translation boundary.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Level is the engine's own three-level taxonomy (spec.md §6 "log(level,
// ...)").
type Level int

const (
	Debug Level = iota
	Normal
	Error
)

// New builds a logrus.Logger configured the way a daemon expects:
// text formatting with full timestamps to stderr by default, level
// controlled by levelName ("debug", "info"/"normal", "error").
func New(levelName string) *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.SetLevel(parseLevel(levelName))
	return l
}

func parseLevel(name string) logrus.Level {
	switch name {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Log emits msg at the engine-taxonomy level lvl, with fields attached.
// This is the direct implementation of the host primitive spec.md §6
// names as log(level, …).
func Log(entry *logrus.Entry, lvl Level, msg string, fields logrus.Fields) {
	e := entry
	if fields != nil {
		e = entry.WithFields(fields)
	}
	switch lvl {
	case Debug:
		e.Debug(msg)
	case Error:
		e.Error(msg)
	default:
		e.Info(msg)
	}
}

// Fatal logs msg at logrus's Fatal level with fields and then terminates the
// process with a nonzero exit code — spec.md §7's "fail-fast
// termination for internal inconsistency and user misconfiguration".
func Fatal(entry *logrus.Entry, msg string, fields logrus.Fields) {
	e := entry
	if fields != nil {
		e = entry.WithFields(fields)
	}
	e.Fatal(msg) // logrus.Fatal calls os.Exit(1) after logging.
}
