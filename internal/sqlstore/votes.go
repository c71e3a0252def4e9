package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// ApplyVote reads both sides of the (userID, pollID) vote, asks decide for
// the final state and rewrites vote_events and user_votes in one
// transaction. On PostgreSQL the poll row is locked for the duration, which
// serializes concurrent votes on the same poll.
func (s *Store) ApplyVote(ctx context.Context, userID, pollID string, decide models.VoteDecider) (*models.User, *models.Poll, error) {
	var (
		user *models.User
		poll *models.Poll
	)
	err := s.runInTx(ctx, func(tx *sqlx.Tx) error {
		p, err := s.loadPoll(ctx, tx, pollID, s.lock)
		if err != nil {
			return err
		}

		u, err := s.loadUser(ctx, tx, sq.Eq{"id": userID})
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("user %s: %w", userID, models.ErrUnauthorized)
		}
		if err != nil {
			return err
		}

		userSide := models.NoVote
		if c, ok := u.VoteFor(pollID); ok {
			userSide = models.VotedFor(c)
		}
		pollSide := models.NoVote
		if e, ok := p.EventFor(userID); ok {
			pollSide = models.VotedFor(e.Option)
		}

		out, err := decide(models.VoteSnapshot{Poll: p, UserSide: userSide, PollSide: pollSide})
		if err != nil {
			return err
		}

		if err := exec(ctx, tx, s.sb.Delete("vote_events").Where(sq.Eq{"poll_id": pollID, "user_id": userID})); err != nil {
			return err
		}
		if err := exec(ctx, tx, s.sb.Delete("user_votes").Where(sq.Eq{"user_id": userID, "poll_id": pollID})); err != nil {
			return err
		}
		if out.Final.Voted {
			err := exec(ctx, tx, s.sb.Insert("vote_events").
				Columns("poll_id", "user_id", "option_idx", "voted_at").
				Values(pollID, userID, out.Final.Choice, out.VotedAt.UnixMilli()))
			if err != nil {
				return err
			}
			err = exec(ctx, tx, s.sb.Insert("user_votes").
				Columns("user_id", "poll_id", "choice").
				Values(userID, pollID, out.Final.Choice))
			if err != nil {
				return err
			}
		}

		if user, err = s.loadUser(ctx, tx, sq.Eq{"id": userID}); err != nil {
			return err
		}
		poll, err = s.loadPoll(ctx, tx, pollID, "")
		return err
	})
	if err != nil {
		if isUniqueViolation(err) || errors.Is(err, sql.ErrTxDone) {
			err = fmt.Errorf("%v: %w", err, models.ErrConflict)
		}
		return nil, nil, fmt.Errorf("apply vote of %s on %s: %w", userID, pollID, err)
	}
	return user, poll, nil
}
