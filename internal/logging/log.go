// Package logging provides the structured logging system shared by every
// component of the ingestion pipeline, built on zerolog. It supports
// multiple log levels and key-value structured fields, and can be replaced
// with a custom Logger implementation by callers that already have their
// own.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message. Higher values are more
// verbose.
type LogLevel int

const (
	// LevelOff disables all logging.
	LevelOff LogLevel = iota
	// LevelError enables only error messages.
	LevelError
	// LevelWarn enables error and warning messages.
	LevelWarn
	// LevelInfo enables error, warning, and info messages.
	LevelInfo
	// LevelDebug enables all messages including debug.
	LevelDebug
)

// Logger is the structured logging interface every component logs through.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	SetLevel(level LogLevel)
}

// zerologLogger wraps a zerolog.Logger, translating this package's
// key-value call shape into zerolog's event/field builder.
type zerologLogger struct {
	logger zerolog.Logger
}

// New creates a Logger writing JSON lines to os.Stderr with a timestamp
// field, at the given level.
func New(level LogLevel) Logger {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &zerologLogger{logger: zl}
}

func (l *zerologLogger) SetLevel(level LogLevel) {
	l.logger = l.logger.Level(toZerologLevel(level))
}

func (l *zerologLogger) event(level LogLevel) *zerolog.Event {
	switch level {
	case LevelDebug:
		return l.logger.Debug()
	case LevelInfo:
		return l.logger.Info()
	case LevelWarn:
		return l.logger.Warn()
	case LevelError:
		return l.logger.Error()
	default:
		return l.logger.Log()
	}
}

// withFields attaches an alternating key/value list to an event, matching
// the calling convention every component in this module already uses
// (Logger.Info("msg", "key", value, ...)). A trailing unpaired key is
// attached with a nil value rather than dropped.
func withFields(e *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		if i+1 < len(keysAndValues) {
			e = e.Interface(key, keysAndValues[i+1])
		} else {
			e = e.Interface(key, nil)
		}
	}
	return e
}

func (l *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	withFields(l.event(LevelDebug), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(l.event(LevelInfo), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	withFields(l.event(LevelWarn), keysAndValues).Msg(msg)
}

func (l *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	withFields(l.event(LevelError), keysAndValues).Msg(msg)
}

// toZerologLevel maps this package's level enum onto zerolog's, since the
// two don't share a numbering (zerolog reserves negative values for trace
// and treats Disabled as the highest number).
func toZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelOff:
		return zerolog.Disabled
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// String renders a LogLevel as an upper-case label, used when round-tripping
// through config.
func (l LogLevel) String() string {
	return [...]string{"OFF", "ERROR", "WARN", "INFO", "DEBUG"}[l]
}

// UnmarshalText implements encoding.TextUnmarshaler so LogLevel can be
// configured directly from a JSON config file or an environment variable.
func (l *LogLevel) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "OFF":
		*l = LevelOff
	case "ERROR":
		*l = LevelError
	case "WARN":
		*l = LevelWarn
	case "INFO":
		*l = LevelInfo
	case "DEBUG":
		*l = LevelDebug
	default:
		return fmt.Errorf("invalid log level: %s", string(text))
	}
	return nil
}

// Global is the package-level logger instance most components default to.
var Global Logger

func init() {
	Global = New(LevelInfo)
}

// SetGlobalLevel adjusts the verbosity of the global logger.
func SetGlobalLevel(level LogLevel) {
	Global.SetLevel(level)
}
