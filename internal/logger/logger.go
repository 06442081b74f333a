// Package logger builds the process-wide slog logger. Logs are written in
// JSON format, either to stderr or to a size-rotated file:
//
//	<logDir>/apns-notifyd.log
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created inside the log directory.
const FileName = "apns-notifyd.log"

// Rotation limits for the log file.
const (
	maxSizeMB  = 20
	maxBackups = 5
	maxAgeDays = 30
)

// New creates a JSON slog.Logger. When logDir is empty the logger writes to
// stderr; otherwise it appends to <logDir>/apns-notifyd.log, rotating by
// size. The returned closer must be closed before the process exits.
func New(logDir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if logDir == "" {
		return newLogger(os.Stderr, level), nopCloser{}, nil
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return newLogger(w, level), w, nil
}

// WithEvent returns a child logger tagged with the invocation's event id.
func WithEvent(l *slog.Logger, eventID string) *slog.Logger {
	return l.With("event_id", eventID)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("app", "apns-notifyd")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
