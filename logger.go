package flyapi

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is the structured logger used by the client, the query cache and
// the hook factory. keysAndValues alternate between keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSimpleLogger returns a text logger on stderr at info level.
func NewSimpleLogger() *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// NewDebugLogger returns a text logger on w that includes debug messages.
func NewDebugLogger(w io.Writer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// NewSlogLogger wraps logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "flyapi")}
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) { l.logger.Debug(msg, keysAndValues...) }
func (l *SlogLogger) Info(msg string, keysAndValues ...any)  { l.logger.Info(msg, keysAndValues...) }
func (l *SlogLogger) Warn(msg string, keysAndValues ...any)  { l.logger.Warn(msg, keysAndValues...) }
func (l *SlogLogger) Error(msg string, keysAndValues ...any) { l.logger.Error(msg, keysAndValues...) }

// LogrusLogger adapts a logrus logger or entry to Logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps logger. A nil logger uses logrus.StandardLogger().
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.with(keysAndValues).Error(msg)
}

func (l *LogrusLogger) with(keysAndValues []any) *logrus.Entry {
	if len(keysAndValues) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = nil
		}
	}
	return l.entry.WithFields(fields)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

// generateRequestID returns a unique identifier for a single request.
func generateRequestID() string {
	return "req_" + uuid.NewString()
}
