// Package logging provides structured logging configuration using log/slog.
//
// Request IDs set by chi's RequestID middleware and ingestion IDs set by
// the core service are carried on the context and attached to every entry
// written through FromContext, so one dataset can be traced from upload to
// chart.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. Tests pass a buffer.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey int

const (
	ingestionKey ctxKey = iota
	viewKey
)

// WithIngestion returns a context that tags log entries with the ingestion
// and the chart view it targets.
func WithIngestion(ctx context.Context, view, ingestionID string) context.Context {
	ctx = context.WithValue(ctx, viewKey, view)
	return context.WithValue(ctx, ingestionKey, ingestionID)
}

// FromContext returns a logger enriched with request context.
//
// Usage:
//
//	func handleUpload(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("dataset received", "file", header.Filename)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if view, ok := ctx.Value(viewKey).(string); ok && view != "" {
		logger = logger.With("view", view)
	}
	if id, ok := ctx.Value(ingestionKey).(string); ok && id != "" {
		logger = logger.With("ingestion_id", id)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	log := logging.WithFields(ctx, "format", res.Format)
//	log.Info("dataset normalized", "rows", len(res.Rows))
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
