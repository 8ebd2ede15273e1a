package logger

import (
	"context"
	"log/slog"
	"time"
)

// LoginEvent is one audited login attempt
type LoginEvent struct {
	Email     string // masked before logging
	UserID    string
	IPAddress string
	Outcome   string
	Failures  int // failures counted against the identity after this attempt
	Duration  time.Duration
}

// AuditLogger writes security audit records
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginAttempt records the outcome of a login attempt.
// Successes log at info, everything else at warn.
func (al *AuditLogger) LogLoginAttempt(ctx context.Context, event LoginEvent) {
	if al == nil {
		return
	}

	success := event.Outcome == "success"
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", "login"),
		slog.String("outcome", event.Outcome),
		slog.Bool("success", success),
		slog.String("email", SanitizedEmail(event.Email)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if !success {
		attrs = append(attrs, slog.Int("failures", event.Failures))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}

	level := slog.LevelWarn
	if success {
		level = slog.LevelInfo
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
