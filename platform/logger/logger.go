// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RuleTriggered logs an automation rule firing for a practice.
func (l *Logger) RuleTriggered(rule string, practiceID int64, reason string) {
	l.Info("automation_rule_triggered",
		slog.String("rule", rule),
		slog.Int64("practice_id", practiceID),
		slog.String("reason", reason),
	)
}

// RuleFailed logs an automation rule whose evaluation or action failed.
func (l *Logger) RuleFailed(rule string, practiceID int64, err error) {
	l.Error("automation_rule_failed",
		slog.String("rule", rule),
		slog.Int64("practice_id", practiceID),
		slog.String("error", err.Error()),
	)
}

// StageMoved logs a pipeline stage transition.
func (l *Logger) StageMoved(practiceID int64, fromStage, toStage string) {
	l.Info("pipeline_stage_moved",
		slog.Int64("practice_id", practiceID),
		slog.String("from_stage", fromStage),
		slog.String("to_stage", toStage),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
