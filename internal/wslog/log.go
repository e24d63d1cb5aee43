// Package wslog adapts zerolog to the narrow wscore.Logger interface, the
// way tzrikka-timpani threads a zerolog.Logger through its call sites
// instead of reaching for a global singleton.
package wslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger and implements wscore.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing JSON to w. If pretty is true, w is wrapped in
// a zerolog.ConsoleWriter for human-readable output instead — mirroring the
// --dev/--pretty-log flag pattern from tzrikka-timpani/cmd/timpani.
func New(w io.Writer, pretty bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Event logs an informational lifecycle event with structured fields.
func (l Logger) Event(name string, fields map[string]any) {
	ev := l.zl.Info().Str("event", name)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(name)
}

// Error logs a failure with its cause attached.
func (l Logger) Error(name string, err error, fields map[string]any) {
	ev := l.zl.Error().Str("event", name).Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(name)
}
