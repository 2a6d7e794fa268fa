// Package ragingest is a Retrieval-Augmented Generation ingestion engine: it
// extracts text from documents, chunks it, optionally enriches each chunk
// with surrounding-document context via a language model, embeds it, and
// persists the result as a searchable fragment.
//
// This file exposes the package's logging facade, built on top of the
// internal logging package so callers don't need to import an internal
// path just to adjust verbosity.
package ragingest

import (
	"github.com/teilomillet/ragingest/internal/logging"
)

// LogLevel controls logging verbosity across the package.
type LogLevel = logging.LogLevel

const (
	LogLevelOff   = logging.LevelOff
	LogLevelError = logging.LevelError
	LogLevelWarn  = logging.LevelWarn
	LogLevelInfo  = logging.LevelInfo
	LogLevelDebug = logging.LevelDebug
)

// Logger is the structured logging interface used throughout the package.
type Logger = logging.Logger

// SetLogLevel sets the global log level for the package.
func SetLogLevel(level LogLevel) {
	logging.SetGlobalLevel(level)
}
