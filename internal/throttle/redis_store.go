package throttle

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "ems:login_attempts:"
	maxTxRetries       = 50
)

var ErrContention = errors.New("throttle: too much contention on login attempt record")

// RedisStore keeps records as JSON strings and serialises updates to a key
// with WATCH/MULTI. A locked record expires when its lock ends; an unlocked
// one is kept until a success or a lock, like MemoryStore.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Attempt, bool, error) {
	k := s.prefix + key

	rec, found, err := decode(s.client.Get(ctx, k))
	if err != nil {
		return Attempt{}, false, errors.Wrapf(err, "get %s", k)
	}
	return rec, found, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := s.prefix + key

	txf := func(tx *redis.Tx) error {
		rec, found, err := decode(tx.Get(ctx, k))
		if err != nil {
			return err
		}

		next, keep := fn(rec, found)

		if !keep && !found {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if !keep {
				pipe.Del(ctx, k)
				return nil
			}

			b, err := json.Marshal(next)
			if err != nil {
				return err
			}
			pipe.Set(ctx, k, b, 0)
			if !next.LockUntil.IsZero() {
				pipe.PExpireAt(ctx, k, next.LockUntil)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return errors.Wrapf(err, "update %s", k)
	}

	return ErrContention
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "delete %s", s.prefix+key)
	}
	return nil
}

func decode(cmd *redis.StringCmd) (Attempt, bool, error) {
	var rec Attempt

	raw, err := cmd.Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return rec, false, nil
	case err != nil:
		return rec, false, err
	}

	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false, errors.Wrap(err, "decode login attempt record")
	}
	return rec, true, nil
}
