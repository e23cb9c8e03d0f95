package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geocoder89/ems/internal/redisclient"
	"github.com/geocoder89/ems/internal/throttle"
)

type throttleStatusOutput struct {
	Email        string     `json:"email"`
	Locked       bool       `json:"locked"`
	Failures     int        `json:"failures"`
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
	LockUntil    *time.Time `json:"lockUntil,omitempty"`
}

func newThrottleCmd() *cobra.Command {
	var (
		redisURL string
		prefix   string
	)

	cmd := &cobra.Command{
		Use:   "throttle",
		Short: "Inspect or clear login lockouts held in Redis",
	}
	cmd.PersistentFlags().StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL (default: REDIS_URL)")
	cmd.PersistentFlags().StringVar(&prefix, "prefix", "", "Key prefix of the login attempt records")

	open := func() (*throttle.Throttle, func(), error) {
		if redisURL == "" {
			return nil, nil, errors.New("--redis-url or REDIS_URL is required")
		}

		rc, err := redisclient.New(redisURL)
		if err != nil {
			return nil, nil, err
		}

		store := throttle.NewRedisStore(rc.Raw(), prefix)
		return throttle.New(store, throttle.Options{}), func() { _ = rc.Close() }, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <email>",
		Short: "Show the failure count and lock state for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			rec, found, err := t.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := throttleStatusOutput{Email: throttle.Key(args[0])}
			if found {
				out.Locked = rec.Locked(time.Now())
				out.Failures = rec.Count
				if !rec.LastFailedAt.IsZero() {
					out.LastFailedAt = &rec.LastFailedAt
				}
				if !rec.LockUntil.IsZero() {
					out.LockUntil = &rec.LockUntil
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear the failure record so the email can log in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			if err := t.Unlock(cmd.Context(), args[0]); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"email": throttle.Key(args[0]), "status": "unlocked"})
		},
	})

	return cmd
}
