package redishandler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
)

// CreatePoll stores p with its options and indexes it for listing.
func (s *Store) CreatePoll(ctx context.Context, p *models.Poll) error {
	rec, err := newPollRecord(p)
	if err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	score := float64(p.PublishedAt.UnixMilli())

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, pollKey(p.ID), rec.hash())
		pipe.HSet(ctx, pollOptionsKey(p.ID), optionsHash(p.Options))
		pipe.ZAdd(ctx, pollsIndexKey, redis.Z{Score: score, Member: p.ID})
		pipe.ZAdd(ctx, userPollsKey(p.CreatedBy), redis.Z{Score: score, Member: p.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	return nil
}

// GetPoll returns a poll with options and vote events.
func (s *Store) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := loadPoll(ctx, s.rdb, id)
	if err != nil {
		return nil, fmt.Errorf("get poll %s: %w", id, err)
	}
	return p, nil
}

// IncrementViews bumps the poll's view counter and returns the new value.
func (s *Store) IncrementViews(ctx context.Context, id string) (int64, error) {
	views, err := incrementViewsScript.Run(ctx, s.rdb, []string{pollKey(id)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment views of poll %s: %w", id, err)
	}
	if views == scriptPollMissing {
		return 0, fmt.Errorf("increment views of poll %s: %w", id, models.ErrNotFound)
	}
	return views, nil
}

// ClosePoll sets the stored status of a poll to closed.
func (s *Store) ClosePoll(ctx context.Context, id string) error {
	res, err := closePollScript.Run(ctx, s.rdb, []string{pollKey(id)}, string(models.VisibilityClosed)).Int64()
	if err != nil {
		return fmt.Errorf("close poll %s: %w", id, err)
	}
	if res == scriptPollMissing {
		return fmt.Errorf("close poll %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeletePoll removes a poll, its options and events, and every voter's
// record of it, in one transaction.
func (s *Store) DeletePoll(ctx context.Context, id string) error {
	pKey, vKey := pollKey(id), pollVotesKey(id)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		creator, err := tx.HGet(ctx, pKey, "created_by").Result()
		if errors.Is(err, redis.Nil) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}
		voters, err := tx.HKeys(ctx, vKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, pKey, pollOptionsKey(id), vKey)
			pipe.ZRem(ctx, pollsIndexKey, id)
			pipe.ZRem(ctx, userPollsKey(creator), id)
			for _, voter := range voters {
				pipe.HDel(ctx, userVotesKey(voter), id)
			}
			return nil
		})
		return err
	}, pKey, vKey)
	if err != nil {
		return fmt.Errorf("delete poll %s: %w", id, err)
	}
	return nil
}

// ListPolls returns one page of polls matching f, newest first, and the
// number of matches across all pages.
func (s *Store) ListPolls(ctx context.Context, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	index := pollsIndexKey
	if f.CreatorID != "" {
		index = userPollsKey(f.CreatorID)
	}
	ids, err := s.rdb.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list polls: %w", err)
	}
	return s.page(ctx, ids, f, now)
}

// ListPollsVotedBy pages through the polls userID currently has a vote on.
func (s *Store) ListPollsVotedBy(ctx context.Context, userID string, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	ids, err := s.rdb.HKeys(ctx, userVotesKey(userID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list polls voted by %s: %w", userID, err)
	}
	return s.page(ctx, ids, f, now)
}

// PollsByCreator returns every poll created by userID with its events.
func (s *Store) PollsByCreator(ctx context.Context, userID string) ([]*models.Poll, error) {
	ids, err := s.rdb.ZRevRange(ctx, userPollsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("polls by creator %s: %w", userID, err)
	}
	polls, err := s.loadPolls(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("polls by creator %s: %w", userID, err)
	}
	return polls, nil
}

// page filters candidate ids with f, then loads full polls for the page
// only. The total and the page come from the same matched slice.
func (s *Store) page(ctx context.Context, ids []string, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	records, err := s.loadRecords(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("list polls: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})

	matched := make([]string, 0, len(records))
	for _, p := range records {
		if f.Match(p, now) {
			matched = append(matched, p.ID)
		}
	}

	polls, err := s.loadPolls(ctx, filter.Page(f, matched))
	if err != nil {
		return nil, 0, fmt.Errorf("list polls: %w", err)
	}
	return polls, len(matched), nil
}

// loadRecords reads only the poll:{id} hashes. Ids without a hash are
// skipped.
func (s *Store) loadRecords(ctx context.Context, ids []string) ([]*models.Poll, error) {
	if len(ids) == 0 {
		return []*models.Poll{}, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, pollKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Poll, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		p, err := decodePollRecord(cmd.Val())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// loadPolls reads full polls in the order of ids, skipping missing ones.
func (s *Store) loadPolls(ctx context.Context, ids []string) ([]*models.Poll, error) {
	out := make([]*models.Poll, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	type pollCmds struct {
		poll, options, votes *redis.MapStringStringCmd
	}
	cmds := make([]pollCmds, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pollCmds{
				poll:    pipe.HGetAll(ctx, pollKey(id)),
				options: pipe.HGetAll(ctx, pollOptionsKey(id)),
				votes:   pipe.HGetAll(ctx, pollVotesKey(id)),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range cmds {
		if len(c.poll.Val()) == 0 {
			continue
		}
		p, err := assemblePoll(c.poll.Val(), c.options.Val(), c.votes.Val())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func loadPoll(ctx context.Context, c pipeliner, id string) (*models.Poll, error) {
	var pollCmd, optionsCmd, votesCmd *redis.MapStringStringCmd
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pollCmd = pipe.HGetAll(ctx, pollKey(id))
		optionsCmd = pipe.HGetAll(ctx, pollOptionsKey(id))
		votesCmd = pipe.HGetAll(ctx, pollVotesKey(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pollCmd.Val()) == 0 {
		return nil, models.ErrNotFound
	}
	return assemblePoll(pollCmd.Val(), optionsCmd.Val(), votesCmd.Val())
}

func assemblePoll(record, options, votes map[string]string) (*models.Poll, error) {
	p, err := decodePollRecord(record)
	if err != nil {
		return nil, err
	}
	if p.Options, err = decodeOptions(options); err != nil {
		return nil, fmt.Errorf("poll %s: %w", p.ID, err)
	}
	if p.Votes, err = decodeEvents(votes); err != nil {
		return nil, fmt.Errorf("poll %s: %w", p.ID, err)
	}
	p.SortVotes()
	return p, nil
}
