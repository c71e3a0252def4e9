package redishandler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// ApplyVote reads both sides of the (userID, pollID) vote, asks decide for
// the final state and writes it to user:{u}:votes and poll:{p}:votes with
// applyVoteScript. The write is a compare-and-set on the pair's own fields
// and the poll status: only a concurrent vote by the same user on the same
// poll, or the poll closing, forces a retry.
func (s *Store) ApplyVote(ctx context.Context, userID, pollID string, decide models.VoteDecider) (*models.User, *models.Poll, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, nil, fmt.Errorf("apply vote of %s on %s: %w", userID, pollID, err)
			}
		}

		poll, applied, err := s.tryVote(ctx, userID, pollID, decide)
		if err != nil {
			return nil, nil, fmt.Errorf("apply vote of %s on %s: %w", userID, pollID, err)
		}
		if !applied {
			continue
		}

		user, err := s.GetUserByID(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		return user, poll, nil
	}
	return nil, nil, fmt.Errorf("apply vote of %s on %s: retried %d times: %w",
		userID, pollID, s.maxRetries, models.ErrConflict)
}

// tryVote makes one read-decide-write pass. It reports false when the pair
// changed between the read and the write.
func (s *Store) tryVote(ctx context.Context, userID, pollID string, decide models.VoteDecider) (*models.Poll, bool, error) {
	var (
		userExists                    *redis.IntCmd
		pollCmd, optionsCmd, votesCmd *redis.MapStringStringCmd
		recordCmd                     *redis.StringCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		userExists = pipe.Exists(ctx, userKey(userID))
		pollCmd = pipe.HGetAll(ctx, pollKey(pollID))
		optionsCmd = pipe.HGetAll(ctx, pollOptionsKey(pollID))
		votesCmd = pipe.HGetAll(ctx, pollVotesKey(pollID))
		recordCmd = pipe.HGet(ctx, userVotesKey(userID), pollID)
		return nil
	})
	if err = ignoreNil(err); err != nil {
		return nil, false, err
	}
	if userExists.Val() == 0 {
		return nil, false, fmt.Errorf("user %s: %w", userID, models.ErrUnauthorized)
	}
	if len(pollCmd.Val()) == 0 {
		return nil, false, models.ErrNotFound
	}

	p, err := assemblePoll(pollCmd.Val(), optionsCmd.Val(), votesCmd.Val())
	if err != nil {
		return nil, false, err
	}
	record := recordCmd.Val()
	userSide, err := parseRecord(record, pollID)
	if err != nil {
		return nil, false, err
	}
	pollSide := models.NoVote
	if e, ok := p.EventFor(userID); ok {
		pollSide = models.VotedFor(e.Option)
	}

	out, err := decide(models.VoteSnapshot{Poll: p, UserSide: userSide, PollSide: pollSide})
	if err != nil {
		return nil, false, err
	}

	event := models.VoteEvent{Option: out.Final.Choice, UserID: userID, VotedAt: out.VotedAt}
	var choice, encoded string
	if out.Final.Voted {
		choice = strconv.Itoa(out.Final.Choice)
		if encoded, err = encodeEvent(event); err != nil {
			return nil, false, err
		}
	}

	keys := []string{pollKey(pollID), userKey(userID), userVotesKey(userID), pollVotesKey(pollID)}
	res, err := applyVoteScript.Run(ctx, s.rdb, keys,
		pollID, userID, record, votesCmd.Val()[userID], choice, encoded, pollCmd.Val()["status"]).Int()
	if err != nil {
		return nil, false, err
	}
	switch res {
	case scriptApplied:
	case scriptStale:
		return nil, false, nil
	case scriptPollMissing:
		return nil, false, models.ErrNotFound
	case scriptUserMissing:
		return nil, false, fmt.Errorf("user %s: %w", userID, models.ErrUnauthorized)
	default:
		return nil, false, fmt.Errorf("unexpected vote script result %d", res)
	}

	p.Votes = withoutVoter(p.Votes, userID)
	if out.Final.Voted {
		p.Votes = append(p.Votes, event)
	}
	p.SortVotes()
	return p, true, nil
}

// parseRecord decodes the raw user:{u}:votes field for pollID.
func parseRecord(raw, pollID string) (models.VoteState, error) {
	if raw == "" {
		return models.NoVote, nil
	}
	c, err := strconv.Atoi(raw)
	if err != nil {
		return models.NoVote, fmt.Errorf("vote record of poll %s: %w", pollID, err)
	}
	return models.VotedFor(c), nil
}

func withoutVoter(events []models.VoteEvent, userID string) []models.VoteEvent {
	out := make([]models.VoteEvent, 0, len(events))
	for _, e := range events {
		if e.UserID != userID {
			out = append(out, e)
		}
	}
	return out
}
