// Package logging provides structured logging on top of logrus, with a
// request ID carried through context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ContextKey = "request_id"

// Output formats accepted by Init.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// std is the process logger.
var std = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return l
}

// Init configures the process logger. level is any logrus level name
// ("debug", "info", "warn", ...); an empty level keeps info.
func Init(level, format string) error {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	std.SetLevel(lvl)

	switch format {
	case "", FormatJSON:
		std.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case FormatText:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatJSON, FormatText)
	}
	return nil
}

// Logger returns the process logger.
func Logger() *logrus.Logger {
	return std
}

// SetLogger replaces the process logger and returns the previous one.
// Tests use it to install a logger backed by a test hook.
func SetLogger(l *logrus.Logger) *logrus.Logger {
	prev := std
	std = l
	return prev
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// FromContext returns a log entry carrying the request ID of ctx, if any.
func FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(std)
	if ctx == nil {
		return entry
	}
	if requestID := RequestID(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}
