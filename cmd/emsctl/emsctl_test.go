package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/ems/internal/throttle"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func lockOut(t *testing.T, addr, email string) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	th := throttle.New(throttle.NewRedisStore(client, ""), throttle.Options{})
	for i := 0; i < throttle.DefaultMaxAttempts; i++ {
		require.NoError(t, th.LoginFailed(context.Background(), email))
	}
}

func TestThrottleStatusAndUnlock(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr() + "/0"

	lockOut(t, mr.Addr(), "bob@example.com")

	out, err := runCmd(t, "throttle", "status", "Bob@Example.com", "--redis-url", url)
	require.NoError(t, err)

	var status throttleStatusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Equal(t, "bob@example.com", status.Email)
	require.True(t, status.Locked)
	require.Equal(t, throttle.DefaultMaxAttempts, status.Failures)
	require.NotNil(t, status.LockUntil)
	require.WithinDuration(t, time.Now().Add(throttle.DefaultLockFor), *status.LockUntil, time.Minute)

	_, err = runCmd(t, "throttle", "unlock", "bob@example.com", "--redis-url", url)
	require.NoError(t, err)

	out, err = runCmd(t, "throttle", "status", "bob@example.com", "--redis-url", url)
	require.NoError(t, err)
	status = throttleStatusOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.False(t, status.Locked)
	require.Zero(t, status.Failures)
}

func TestThrottleRequiresRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	_, err := runCmd(t, "throttle", "unlock", "bob@example.com", "--redis-url", "")
	require.Error(t, err)
}

func TestThrottleRequiresEmailArg(t *testing.T) {
	_, err := runCmd(t, "throttle", "status")
	require.Error(t, err)
}

func TestThrottleStatusLeavesRecordUntouched(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr() + "/0"
	const key = "ems:login_attempts:dana@example.com"

	lockOut(t, mr.Addr(), "dana@example.com")
	mr.FastForward(5 * time.Minute)

	before, err := mr.Get(key)
	require.NoError(t, err)
	ttl := mr.TTL(key)

	_, err = runCmd(t, "throttle", "status", "dana@example.com", "--redis-url", url)
	require.NoError(t, err)

	after, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, ttl, mr.TTL(key))
}
