package audit

import (
	"context"
	"log/slog"
)

// LogRepo writes events as structured log lines under the "audit" group.
type LogRepo struct {
	log *slog.Logger
}

func NewLogRepo(l *slog.Logger) *LogRepo {
	if l == nil {
		l = slog.Default()
	}
	return &LogRepo{log: l}
}

func (r *LogRepo) Append(ctx context.Context, e Event) error {
	attrs := []any{
		"id", e.ID,
		"tenant", e.Tenant,
		"type", string(e.Type),
		"created_at", e.CreatedAt,
	}
	if e.Username != "" {
		attrs = append(attrs, "username", e.Username)
	}
	if e.IPAddress != "" {
		attrs = append(attrs, "ip", e.IPAddress)
	}
	if e.Message != "" {
		attrs = append(attrs, "message", e.Message)
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, "meta."+k, v)
	}
	r.log.InfoContext(ctx, "audit", slog.Group("audit", attrs...))
	return nil
}
