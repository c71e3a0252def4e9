package redishandler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// CreateUser stores u. Username and email are unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	rec := newUserRecord(u)
	uKey, eKey := usernameKey(u.Username), emailKey(u.Email)

	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, uKey, eKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("user with this email/username: %w", models.ErrAlreadyExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, uKey, u.ID, 0)
			pipe.Set(ctx, eKey, u.ID, 0)
			pipe.HSet(ctx, userKey(u.ID), rec.hash())
			return nil
		})
		return err
	}, uKey, eKey)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID returns the user with their vote records.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.loadUser(ctx, s.rdb, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByLogin resolves a username or an email to a user.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("get user by login: %w", models.ErrNotFound)
	}
	for _, key := range []string{usernameKey(login), emailKey(login)} {
		id, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get user by login: %w", err)
		}
		return s.GetUserByID(ctx, id)
	}
	return nil, fmt.Errorf("get user by login %q: %w", login, models.ErrNotFound)
}

// GetUsers returns users by id without their vote records. Unknown ids are
// left out of the map.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if _, ok := cmds[id]; !ok {
				cmds[id] = pipe.HGetAll(ctx, userKey(id))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	for id, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			continue
		}
		u, err := decodeUser(data)
		if err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, nil
}

func (s *Store) loadUser(ctx context.Context, c pipeliner, id string) (*models.User, error) {
	var userCmd, votesCmd *redis.MapStringStringCmd
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		userCmd = pipe.HGetAll(ctx, userKey(id))
		votesCmd = pipe.HGetAll(ctx, userVotesKey(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(userCmd.Val()) == 0 {
		return nil, models.ErrNotFound
	}
	u, err := decodeUser(userCmd.Val())
	if err != nil {
		return nil, err
	}
	if u.Votes, err = decodeVoteRecords(votesCmd.Val()); err != nil {
		return nil, err
	}
	return u, nil
}
