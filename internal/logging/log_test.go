package logging

import "testing"

func TestLogLevelStringRoundTrips(t *testing.T) {
	levels := []LogLevel{LevelOff, LevelError, LevelWarn, LevelInfo, LevelDebug}
	for _, want := range levels {
		var got LogLevel
		if err := got.UnmarshalText([]byte(want.String())); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", want, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: want %v got %v", want, got)
		}
	}
}

func TestUnmarshalTextRejectsUnknownLevel(t *testing.T) {
	var l LogLevel
	if err := l.UnmarshalText([]byte("VERBOSE")); err == nil {
		t.Fatal("expected an error for an unrecognized level")
	}
}

func TestUnmarshalTextIsCaseInsensitive(t *testing.T) {
	var l LogLevel
	if err := l.UnmarshalText([]byte("debug")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != LevelDebug {
		t.Fatalf("want LevelDebug, got %v", l)
	}
}

func TestNewDoesNotPanicAtAnyLevel(t *testing.T) {
	for _, level := range []LogLevel{LevelOff, LevelError, LevelWarn, LevelInfo, LevelDebug} {
		logger := New(level)
		logger.Debug("debug message", "key", "value")
		logger.Info("info message", "count", 3)
		logger.Warn("warn message")
		logger.Error("error message", "err", "boom", "unpaired")
		logger.SetLevel(LevelOff)
	}
}
