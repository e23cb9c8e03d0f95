package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LockoutObserver turns throttle lockouts into alerts. Each alert is delivered
// on its own goroutine; delivery errors are logged and never reach the login
// path.
type LockoutObserver struct {
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewLockoutObserver(notifier Notifier, log *slog.Logger) *LockoutObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LockoutObserver{notifier: notifier, log: log, now: time.Now}
}

func (o *LockoutObserver) LockedOut(email string, until time.Time) {
	alert := LockoutAlert{
		Email:     email,
		LockedAt:  o.now().UTC(),
		LockUntil: until.UTC(),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		if err := o.notifier.SendLockoutAlert(context.Background(), alert); err != nil {
			o.log.Warn("lockout alert not delivered", "email", alert.Email, "err", err)
		}
	}()
}

// Wait blocks until every alert handed out so far has been attempted.
func (o *LockoutObserver) Wait() {
	o.wg.Wait()
}
