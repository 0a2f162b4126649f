// Package logger implements the logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"go.forgebuild.dev/forge/internal/core/ports"
)

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger *slog.Logger
	mu     *sync.RWMutex
}

// New creates a Logger writing text-formatted records to stderr, as the
// twelve-factor convention expects of a CLI build tool.
func New() ports.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{logger: slog.New(handler), mu: &sync.RWMutex{}}
}

// SetOutput redirects subsequent log records to w.
func (l *Logger) SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = slog.New(handler)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg, args...)
}

func (l *Logger) Error(msg string, err error, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// With returns a Logger that prepends args to every subsequent record.
func (l *Logger) With(args ...any) ports.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{logger: l.logger.With(args...), mu: l.mu}
}
