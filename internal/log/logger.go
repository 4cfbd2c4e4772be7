// Package log wraps log/slog with the component and field vocabulary
// used across the cost dashboard services.
package log

import (
	"log/slog"
	"os"
)

// Logger is a component-tagged slog.Logger. The component travels on
// every record as a regular attribute, so one handler serves the whole
// process and records remain filterable per subsystem.
type Logger struct {
	*slog.Logger
	handler   slog.Handler
	component string
}

// Options controls handler construction. A nil Handler gets a text
// handler on stdout at Level.
type Options struct {
	Level   slog.Level
	Handler slog.Handler
}

// New builds a logger for the given component.
func New(component string, opts Options) *Logger {
	handler := opts.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: opts.Level})
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		handler:   handler,
		component: component,
	}
}

// With returns a logger carrying additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		handler:   l.handler,
		component: l.component,
	}
}

// WithComponent returns a logger for another component sharing the same
// handler. It starts from the handler rather than the current logger so
// the previous component attribute is not carried along.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    slog.New(l.handler).With(FieldComponent, component),
		handler:   l.handler,
		component: component,
	}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the logger as the process-wide slog default, so
// packages logging through slog directly share the same handler.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
