package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pr-review-digest/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs the default slog logger described by cfg and returns it.
// attrs are attached to every record (e.g. "run_id", id).
func Init(cfg config.LogConfig, attrs ...any) *slog.Logger {
	logger := slog.New(newHandler(cfg, os.Stdout)).With(attrs...)
	slog.SetDefault(logger)
	return logger
}

func newHandler(cfg config.LogConfig, stdout io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: getLogLevel(cfg.Level)}
	var handlers []slog.Handler

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			// the logger is not ready yet
			os.Stderr.WriteString("failed to create log directory: " + err.Error() + "\n")
		} else {
			handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}, opts))
		}
	}

	// stdout is the only sink when no file is configured
	if cfg.Stdout || len(handlers) == 0 {
		if strings.EqualFold(cfg.Format, "text") {
			handlers = append(handlers, slog.NewTextHandler(stdout, opts))
		} else {
			handlers = append(handlers, slog.NewJSONHandler(stdout, opts))
		}
	}

	if len(handlers) == 1 {
		return handlers[0]
	}
	return &MultiHandler{handlers: handlers}
}

// MultiHandler fans records out to several handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the given level
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to every enabled handler and joins their errors
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// getLogLevel converts string level to slog.Level
func getLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
