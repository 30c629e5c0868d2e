// Package logging provides the structured logger shared across fastworker-go's
// control plane, subworker, and client processes.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging contract every package in this module depends on.
// Kept intentionally small so call sites never need to know the backend.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// zlogger adapts zerolog.Logger to the Logger interface, pairing up
// keysAndValues as structured fields.
type zlogger struct {
	z zerolog.Logger
}

// New builds a Logger backed by zerolog, writing leveled, structured output
// to w as raw JSON lines (os.Stdout when w is nil). Use NewConsole for a
// human-readable console writer.
func New(w io.Writer, component string) Logger {
	if w == nil {
		w = os.Stdout
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &zlogger{z: z}
}

// NewConsole builds a Logger with zerolog's console writer: a prefixed,
// human-scannable style with structured fields instead of printf
// interpolation.
func NewConsole(component string) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	z := zerolog.New(cw).With().Timestamp().Str("component", component).Logger()
	return &zlogger{z: z}
}

func (l *zlogger) Debug(msg string, kv ...any) { l.event(l.z.Debug(), kv).Msg(msg) }
func (l *zlogger) Info(msg string, kv ...any)  { l.event(l.z.Info(), kv).Msg(msg) }
func (l *zlogger) Warn(msg string, kv ...any)  { l.event(l.z.Warn(), kv).Msg(msg) }
func (l *zlogger) Error(msg string, kv ...any) { l.event(l.z.Error(), kv).Msg(msg) }

func (l *zlogger) event(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}

// Noop returns a Logger that discards everything, useful in tests.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
