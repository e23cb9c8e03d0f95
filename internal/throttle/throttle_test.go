package throttle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/ems/internal/throttle"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type lockCounter struct {
	mu     sync.Mutex
	emails []string
	until  []time.Time
}

func (l *lockCounter) LockedOut(email string, until time.Time) {
	l.mu.Lock()
	l.emails = append(l.emails, email)
	l.until = append(l.until, until)
	l.mu.Unlock()
}

func newRedisStore(t *testing.T) (*throttle.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return throttle.NewRedisStore(client, "test:attempts:"), mr
}

func stores(t *testing.T) map[string]throttle.Store {
	rs, _ := newRedisStore(t)
	return map[string]throttle.Store{
		"memory": throttle.NewMemoryStore(),
		"redis":  rs,
	}
}

// storeCase pairs a store with a way to move its own time forward, so that
// store-side expiry is exercised together with the throttle clock.
type storeCase struct {
	store   throttle.Store
	advance func(time.Duration)
}

func timedStores(t *testing.T) map[string]storeCase {
	rs, mr := newRedisStore(t)
	return map[string]storeCase{
		"memory": {store: throttle.NewMemoryStore(), advance: func(time.Duration) {}},
		"redis":  {store: rs, advance: mr.FastForward},
	}
}

// countingStore counts writes going through the wrapped store.
type countingStore struct {
	throttle.Store
	mu      sync.Mutex
	updates int
	deletes int
}

func (s *countingStore) Update(ctx context.Context, key string, fn throttle.UpdateFunc) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.Update(ctx, key, fn)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.Store.Delete(ctx, key)
}

func TestThrottleLocksAfterFiveFailures(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{now: time.Now()}
			locks := &lockCounter{}

			th := throttle.New(store, throttle.Options{
				Exempt:   []string{"admin@example.com"},
				Observer: locks,
				Now:      clk.Now,
			})

			for i := 0; i < 4; i++ {
				require.NoError(t, th.LoginFailed(ctx, "bob@example.com"))
			}

			blocked, err := th.IsBlocked(ctx, "bob@example.com")
			require.NoError(t, err)
			require.False(t, blocked)

			require.NoError(t, th.LoginFailed(ctx, "  Bob@Example.com "))

			blocked, err = th.IsBlocked(ctx, "bob@example.com")
			require.NoError(t, err)
			require.True(t, blocked)
			require.Equal(t, []string{"bob@example.com"}, locks.emails)
			require.Equal(t, []time.Time{clk.Now().Add(throttle.DefaultLockFor)}, locks.until)

			clk.Advance(14 * time.Minute)
			blocked, err = th.IsBlocked(ctx, "bob@example.com")
			require.NoError(t, err)
			require.True(t, blocked)

			// lock expired: record is cleared and counting restarts
			clk.Advance(2 * time.Minute)
			blocked, err = th.IsBlocked(ctx, "bob@example.com")
			require.NoError(t, err)
			require.False(t, blocked)

			_, found, err := th.Status(ctx, "bob@example.com")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestThrottleSuccessResets(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := throttle.New(store, throttle.Options{})

			for i := 0; i < 4; i++ {
				require.NoError(t, th.LoginFailed(ctx, "carol@example.com"))
			}
			require.NoError(t, th.LoginSucceeded(ctx, "carol@example.com"))

			require.NoError(t, th.LoginFailed(ctx, "carol@example.com"))

			rec, found, err := th.Status(ctx, "carol@example.com")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, 1, rec.Count)
			require.True(t, rec.LockUntil.IsZero())

			blocked, err := th.IsBlocked(ctx, "carol@example.com")
			require.NoError(t, err)
			require.False(t, blocked)
		})
	}
}

func TestThrottleExemptNeverBlocked(t *testing.T) {
	ctx := context.Background()
	store := throttle.NewMemoryStore()
	th := throttle.New(store, throttle.Options{Exempt: []string{"Admin@Example.com"}})

	for i := 0; i < 20; i++ {
		require.NoError(t, th.LoginFailed(ctx, "admin@example.com"))
	}

	blocked, err := th.IsBlocked(ctx, "ADMIN@example.com")
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, store.Len())
}

func TestThrottleUnlock(t *testing.T) {
	ctx := context.Background()
	th := throttle.New(throttle.NewMemoryStore(), throttle.Options{MaxAttempts: 2})

	require.NoError(t, th.LoginFailed(ctx, "dave@example.com"))
	require.NoError(t, th.LoginFailed(ctx, "dave@example.com"))

	blocked, err := th.IsBlocked(ctx, "dave@example.com")
	require.NoError(t, err)
	require.True(t, blocked)

	require.NoError(t, th.Unlock(ctx, "dave@example.com"))

	blocked, err = th.IsBlocked(ctx, "dave@example.com")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestThrottleConcurrentFailuresAreCounted(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			th := throttle.New(store, throttle.Options{MaxAttempts: 1000})

			const workers = 4
			const perWorker = 5

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						_ = th.LoginFailed(ctx, "eve@example.com")
					}
				}()
			}
			wg.Wait()

			rec, found, err := th.Status(ctx, "eve@example.com")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, workers*perWorker, rec.Count)
		})
	}
}

func TestThrottleIdleFailuresAreKept(t *testing.T) {
	for name, sc := range timedStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{now: time.Now()}
			th := throttle.New(sc.store, throttle.Options{Now: clk.Now})

			for i := 0; i < 4; i++ {
				require.NoError(t, th.LoginFailed(ctx, "frank@example.com"))
			}

			clk.Advance(16 * time.Minute)
			sc.advance(16 * time.Minute)

			require.NoError(t, th.LoginFailed(ctx, "frank@example.com"))

			blocked, err := th.IsBlocked(ctx, "frank@example.com")
			require.NoError(t, err)
			require.True(t, blocked)
		})
	}
}

func TestThrottleFailureAfterExpiredLockStartsOver(t *testing.T) {
	for name, sc := range timedStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := &clock{now: time.Now()}
			locks := &lockCounter{}
			th := throttle.New(sc.store, throttle.Options{Now: clk.Now, Observer: locks})

			for i := 0; i < 5; i++ {
				require.NoError(t, th.LoginFailed(ctx, "gina@example.com"))
			}

			clk.Advance(16 * time.Minute)
			sc.advance(16 * time.Minute)

			// no IsBlocked in between: the stale lock must not carry over
			require.NoError(t, th.LoginFailed(ctx, "gina@example.com"))

			rec, found, err := th.Status(ctx, "gina@example.com")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, 1, rec.Count)
			require.True(t, rec.LockUntil.IsZero())
			require.Len(t, locks.emails, 1)
		})
	}
}

func TestThrottleStatusIsReadOnly(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cs := &countingStore{Store: store}
			th := throttle.New(cs, throttle.Options{})

			require.NoError(t, th.LoginFailed(ctx, "hank@example.com"))
			cs.updates = 0

			rec, found, err := th.Status(ctx, "hank@example.com")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, 1, rec.Count)

			_, found, err = th.Status(ctx, "nobody@example.com")
			require.NoError(t, err)
			require.False(t, found)

			require.Zero(t, cs.updates)
			require.Zero(t, cs.deletes)
		})
	}
}

func TestRedisStoreExpiresOnlyLockedRecords(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	th := throttle.New(store, throttle.Options{MaxAttempts: 2})

	require.NoError(t, th.LoginFailed(ctx, "ivy@example.com"))
	require.Zero(t, mr.TTL("test:attempts:ivy@example.com"))

	require.NoError(t, th.LoginFailed(ctx, "ivy@example.com"))
	ttl := mr.TTL("test:attempts:ivy@example.com")
	require.InDelta(t, throttle.DefaultLockFor.Seconds(), ttl.Seconds(), 5)

	mr.FastForward(throttle.DefaultLockFor + time.Second)
	require.False(t, mr.Exists("test:attempts:ivy@example.com"))
}

func TestObserversFanOut(t *testing.T) {
	a, b := &lockCounter{}, &lockCounter{}
	th := throttle.New(throttle.NewMemoryStore(), throttle.Options{
		MaxAttempts: 2,
		Observer:    throttle.Observers{a, nil, b},
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, th.LoginFailed(ctx, "Bob@Example.com"))
	}

	require.Equal(t, []string{"bob@example.com"}, a.emails)
	require.Equal(t, []string{"bob@example.com"}, b.emails)
}
