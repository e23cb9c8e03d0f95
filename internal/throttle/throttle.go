// Package throttle locks an account out of password login after repeated
// failures.
package throttle

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultLockFor     = 15 * time.Minute
)

// Attempt is the failure record kept per email.
type Attempt struct {
	Count        int       `json:"count"`
	LastFailedAt time.Time `json:"lastFailedAt"`
	LockUntil    time.Time `json:"lockUntil,omitempty"`
}

func (a Attempt) Locked(now time.Time) bool {
	return !a.LockUntil.IsZero() && now.Before(a.LockUntil)
}

// UpdateFunc receives the current record (found is false when there is none)
// and returns the record to store. Returning keep=false deletes the record.
type UpdateFunc func(rec Attempt, found bool) (next Attempt, keep bool)

// Store is an atomic per-key record store. Update must run fn and persist its
// result without interleaving another Update on the same key. Get reads
// without writing.
type Store interface {
	Get(ctx context.Context, key string) (Attempt, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
}

// Observer is notified about lockouts. It must not block.
type Observer interface {
	LockedOut(email string, until time.Time)
}

// Observers fans a lockout out to several observers.
type Observers []Observer

func (o Observers) LockedOut(email string, until time.Time) {
	for _, obs := range o {
		if obs != nil {
			obs.LockedOut(email, until)
		}
	}
}

type Options struct {
	MaxAttempts int
	LockFor     time.Duration
	Exempt      []string
	Observer    Observer
	Now         func() time.Time
}

type Throttle struct {
	store       Store
	maxAttempts int
	lockFor     time.Duration
	exempt      map[string]struct{}
	observer    Observer
	now         func() time.Time
}

func New(store Store, opts Options) *Throttle {
	t := &Throttle{
		store:       store,
		maxAttempts: opts.MaxAttempts,
		lockFor:     opts.LockFor,
		exempt:      make(map[string]struct{}, len(opts.Exempt)),
		observer:    opts.Observer,
		now:         opts.Now,
	}

	if t.maxAttempts <= 0 {
		t.maxAttempts = DefaultMaxAttempts
	}
	if t.lockFor <= 0 {
		t.lockFor = DefaultLockFor
	}
	if t.now == nil {
		t.now = time.Now
	}

	for _, e := range opts.Exempt {
		if k := Key(e); k != "" {
			t.exempt[k] = struct{}{}
		}
	}

	return t
}

// Key is the normalised form of an email used as the record key.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (t *Throttle) IsExempt(email string) bool {
	_, ok := t.exempt[Key(email)]
	return ok
}

func (t *Throttle) LockFor() time.Duration {
	return t.lockFor
}

// LoginFailed counts one failed attempt and starts the lock once the limit is
// reached. A record whose lock has run out counts from zero again.
func (t *Throttle) LoginFailed(ctx context.Context, email string) error {
	if t.IsExempt(email) {
		return nil
	}

	var (
		lockedNow bool
		until     time.Time
	)

	err := t.store.Update(ctx, Key(email), func(rec Attempt, _ bool) (Attempt, bool) {
		now := t.now()
		if !rec.LockUntil.IsZero() && !rec.Locked(now) {
			rec = Attempt{}
		}

		rec.Count++
		rec.LastFailedAt = now
		lockedNow = false
		if rec.Count >= t.maxAttempts {
			lockedNow = !rec.Locked(now)
			rec.LockUntil = now.Add(t.lockFor)
		}
		until = rec.LockUntil
		return rec, true
	})
	if err != nil {
		return err
	}

	if lockedNow && t.observer != nil {
		t.observer.LockedOut(Key(email), until)
	}
	return nil
}

func (t *Throttle) LoginSucceeded(ctx context.Context, email string) error {
	return t.store.Delete(ctx, Key(email))
}

// IsBlocked reports whether the email is inside an active lock. A lock that
// has run out is cleared so counting starts over.
func (t *Throttle) IsBlocked(ctx context.Context, email string) (bool, error) {
	if t.IsExempt(email) {
		return false, nil
	}

	blocked := false

	err := t.store.Update(ctx, Key(email), func(rec Attempt, found bool) (Attempt, bool) {
		blocked = false
		if !found {
			return rec, false
		}
		if rec.LockUntil.IsZero() {
			return rec, true
		}
		if rec.Locked(t.now()) {
			blocked = true
			return rec, true
		}
		return Attempt{}, false
	})

	return blocked, err
}

// Status returns the stored record for an email without touching it.
func (t *Throttle) Status(ctx context.Context, email string) (Attempt, bool, error) {
	return t.store.Get(ctx, Key(email))
}

// Unlock removes any record for the email.
func (t *Throttle) Unlock(ctx context.Context, email string) error {
	return t.store.Delete(ctx, Key(email))
}
