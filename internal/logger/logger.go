// Package logger provides the leveled logger shared by every shardsort
// component. Components never reach for a package-level logger; they are
// handed one at construction time and narrow it with WithPrefix.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Logger represents an interface for a shared logger.
type Logger interface {
	Printf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// WithPrefix returns a new Logger with the same configuration as
	// this one, but every entry carries the given component name.
	WithPrefix(prefix string) Logger
}

// Ensure both implementations satisfy the interface.
var (
	_ Logger = &nopLogger{}
	_ Logger = &zeroLogger{}
)

// NopLogger represents a Logger that doesn't do anything.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (n *nopLogger) Printf(format string, v ...interface{}) {}
func (n *nopLogger) Debugf(format string, v ...interface{}) {}
func (n *nopLogger) Infof(format string, v ...interface{})  {}
func (n *nopLogger) Warnf(format string, v ...interface{})  {}
func (n *nopLogger) Errorf(format string, v ...interface{}) {}
func (n *nopLogger) WithPrefix(prefix string) Logger        { return n }

// zeroLogger adapts a zerolog.Logger to Logger.
type zeroLogger struct {
	zl zerolog.Logger
}

// New returns a Logger writing human-readable lines to w at the given
// level ("debug", "info", "warn", "error"). An empty level means info.
func New(w io.Writer, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}
	zl := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}, nil
}

// NewJSON returns a Logger emitting one JSON object per entry. It is
// used by tests that inspect log output.
func NewJSON(w io.Writer, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &zeroLogger{zl: zerolog.New(w).Level(lvl)}, nil
}

// Stderr is a convenience constructor used when configuration has not
// been loaded yet.
func Stderr() Logger {
	l, _ := New(os.Stderr, "info")
	return l
}

// ParseLevel maps a configured verbosity name onto a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, errors.Errorf("unknown log level %q", level)
}

// Printf logs at info level, for callers written against log.Printf.
func (z *zeroLogger) Printf(format string, v ...interface{}) {
	z.zl.Info().Msgf(format, v...)
}

func (z *zeroLogger) Debugf(format string, v ...interface{}) {
	z.zl.Debug().Msgf(format, v...)
}

func (z *zeroLogger) Infof(format string, v ...interface{}) {
	z.zl.Info().Msgf(format, v...)
}

func (z *zeroLogger) Warnf(format string, v ...interface{}) {
	z.zl.Warn().Msgf(format, v...)
}

func (z *zeroLogger) Errorf(format string, v ...interface{}) {
	z.zl.Error().Msgf(format, v...)
}

func (z *zeroLogger) WithPrefix(prefix string) Logger {
	return &zeroLogger{zl: z.zl.With().Str("component", prefix).Logger()}
}
