package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendLockoutAlert(ctx context.Context, alert LockoutAlert) error {
	n.log.WarnContext(ctx, "security.login_lockout",
		"email", alert.Email,
		"locked_at", alert.LockedAt,
		"lock_until", alert.LockUntil,
	)
	return nil
}
