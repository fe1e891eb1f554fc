package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"

	"github.com/sirupsen/logrus"
)

// NamedLogger creates a component logger at the given level.
func NamedLogger(name string, level logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out: os.Stderr,
		Formatter: &CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{
				ForceColors:   true,
				FullTimestamp: true,
				CallerPrettyfier: func(*runtime.Frame) (string, string) {
					return "", ""
				},
			},
			Name: name,
		},
		Hooks:        make(logrus.LevelHooks),
		Level:        level,
		ReportCaller: true,
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// CustomTextFormatter prefixes every message with the component name and the
// calling file:line.
type CustomTextFormatter struct {
	logrus.TextFormatter
	Name string
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%s %-14s:%03d] %s", f.Name, path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	} else {
		entry.Message = fmt.Sprintf("[%s] %s", f.Name, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
