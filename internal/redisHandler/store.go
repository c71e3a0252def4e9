// Package redishandler stores users, polls and vote events in Redis.
//
// A vote changes the user's record and the poll's event in one Lua script,
// so both sides change together or not at all. Signup and poll deletion go
// through WATCH + MULTI/EXEC.
package redishandler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saxenaaman628/pollbox/internal/models"
)

const (
	// DefaultMaxRetries bounds optimistic retries before a write gives up
	// with models.ErrConflict.
	DefaultMaxRetries = 20

	defaultRetryDelay = 2 * time.Millisecond
	maxRetryDelay     = 100 * time.Millisecond
)

// Store is a Redis-backed user, poll and vote store.
type Store struct {
	rdb        *redis.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a Store on an open client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, maxRetries: DefaultMaxRetries, retryDelay: defaultRetryDelay}
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// watch runs fn as an optimistic transaction over keys, retrying when a
// watched key changes before EXEC.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < s.maxRetries; i++ {
		if i > 0 {
			if err := s.backoff(ctx, i); err != nil {
				return err
			}
		}
		err := s.rdb.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %v retried %d times: %w", keys, s.maxRetries, models.ErrConflict)
}

// backoff sleeps before retry number attempt: exponential from retryDelay,
// capped at maxRetryDelay, with jitter so colliding writers spread out.
func (s *Store) backoff(ctx context.Context, attempt int) error {
	d := s.retryDelay << min(attempt-1, 10)
	if d <= 0 || d > maxRetryDelay {
		d = maxRetryDelay
	}
	d = d/2 + rand.N(d/2+1)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pipeliner is satisfied by both *redis.Client and *redis.Tx.
type pipeliner interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// ignoreNil drops redis.Nil, which a pipeline reports for absent fields.
func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
