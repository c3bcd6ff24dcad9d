package logger

import (
	"context"
	"log/slog"
)

// LevelCritical marks events operators must be alerted on, such as a
// tenant-scoped request without a tenant or a cross-tenant leak.
const LevelCritical = slog.Level(12)

// Critical logs msg at LevelCritical.
func Critical(ctx context.Context, l *slog.Logger, msg string, attrs ...slog.Attr) {
	if l == nil {
		l = slog.Default()
	}
	l.LogAttrs(ctx, LevelCritical, msg, attrs...)
}

func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}
