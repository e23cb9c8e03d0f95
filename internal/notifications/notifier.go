// Package notifications delivers security alerts, currently login lockouts.
package notifications

import (
	"context"
	"time"
)

type LockoutAlert struct {
	Email     string
	LockedAt  time.Time
	LockUntil time.Time
}

type Notifier interface {
	SendLockoutAlert(ctx context.Context, alert LockoutAlert) error
}
