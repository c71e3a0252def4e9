package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
)

var pollColumns = []string{
	"p.id", "p.title", "p.created_by", "p.status", "p.category",
	"p.image", "p.published_at", "p.expires_at", "p.views",
}

type pollRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	CreatedBy   string `db:"created_by"`
	Status      string `db:"status"`
	Category    string `db:"category"`
	Image       string `db:"image"`
	PublishedAt int64  `db:"published_at"`
	ExpiresAt   int64  `db:"expires_at"`
	Views       int64  `db:"views"`
}

func (r pollRow) poll() (*models.Poll, error) {
	var cats []string
	if err := json.Unmarshal([]byte(r.Category), &cats); err != nil {
		return nil, fmt.Errorf("decode categories of poll %s: %w", r.ID, err)
	}
	if cats == nil {
		cats = []string{}
	}
	return &models.Poll{
		ID:          r.ID,
		Title:       r.Title,
		CreatedBy:   r.CreatedBy,
		Status:      models.Visibility(r.Status),
		Categories:  cats,
		Image:       r.Image,
		PublishedAt: time.UnixMilli(r.PublishedAt).UTC(),
		ExpiresAt:   time.UnixMilli(r.ExpiresAt).UTC(),
		Views:       r.Views,
		Options:     []string{},
		Votes:       []models.VoteEvent{},
	}, nil
}

type optionRow struct {
	PollID string `db:"poll_id"`
	Idx    int    `db:"idx"`
	Label  string `db:"label"`
}

type eventRow struct {
	PollID    string `db:"poll_id"`
	UserID    string `db:"user_id"`
	OptionIdx int    `db:"option_idx"`
	VotedAt   int64  `db:"voted_at"`
}

// CreatePoll inserts p and its options.
func (s *Store) CreatePoll(ctx context.Context, p *models.Poll) error {
	cats := p.Categories
	if cats == nil {
		cats = []string{}
	}
	category, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("create poll: encode categories: %w", err)
	}

	err = s.runInTx(ctx, func(tx *sqlx.Tx) error {
		insert := s.sb.Insert("polls").
			Columns("id", "title", "created_by", "status", "category", "image", "published_at", "expires_at", "views").
			Values(p.ID, p.Title, p.CreatedBy, string(p.Status), string(category), p.Image,
				p.PublishedAt.UnixMilli(), p.ExpiresAt.UnixMilli(), p.Views)
		if err := exec(ctx, tx, insert); err != nil {
			return err
		}

		options := s.sb.Insert("poll_options").Columns("poll_id", "idx", "label")
		for i, label := range p.Options {
			options = options.Values(p.ID, i, label)
		}
		return exec(ctx, tx, options)
	})
	if err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	return nil
}

// GetPoll returns a poll with options and vote events.
func (s *Store) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := s.loadPoll(ctx, s.db, id, "")
	if err != nil {
		return nil, fmt.Errorf("get poll %s: %w", id, err)
	}
	return p, nil
}

// IncrementViews bumps the poll's view counter and returns the new value.
func (s *Store) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := s.runInTx(ctx, func(tx *sqlx.Tx) error {
		update := s.sb.Update("polls").Set("views", sq.Expr("views + 1")).Where(sq.Eq{"id": id})
		query, args, err := update.ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.ErrNotFound
		}
		return get(ctx, tx, &views, s.sb.Select("views").From("polls").Where(sq.Eq{"id": id}))
	})
	if err != nil {
		return 0, fmt.Errorf("increment views of poll %s: %w", id, err)
	}
	return views, nil
}

// ClosePoll sets the stored status of a poll to closed.
func (s *Store) ClosePoll(ctx context.Context, id string) error {
	update := s.sb.Update("polls").Set("status", string(models.VisibilityClosed)).Where(sq.Eq{"id": id})
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("close poll %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("close poll %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("close poll %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("close poll %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeletePoll removes a poll with its options, events and every voter's
// record of it.
func (s *Store) DeletePoll(ctx context.Context, id string) error {
	err := s.runInTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := get(ctx, tx, &n, s.sb.Select("COUNT(*)").From("polls").Where(sq.Eq{"id": id})); err != nil {
			return err
		}
		if n == 0 {
			return models.ErrNotFound
		}
		for _, table := range []string{"user_votes", "vote_events", "poll_options"} {
			if err := exec(ctx, tx, s.sb.Delete(table).Where(sq.Eq{"poll_id": id})); err != nil {
				return err
			}
		}
		return exec(ctx, tx, s.sb.Delete("polls").Where(sq.Eq{"id": id}))
	})
	if err != nil {
		return fmt.Errorf("delete poll %s: %w", id, err)
	}
	return nil
}

// ListPolls returns one page of polls matching f, newest first, and the
// number of matches across all pages.
func (s *Store) ListPolls(ctx context.Context, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	polls, total, err := s.page(ctx, s.sb.Select().From("polls p"), f, now)
	if err != nil {
		return nil, 0, fmt.Errorf("list polls: %w", err)
	}
	return polls, total, nil
}

// ListPollsVotedBy pages through the polls userID currently has a vote on.
func (s *Store) ListPollsVotedBy(ctx context.Context, userID string, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	from := s.sb.Select().From("polls p").
		Join("user_votes uv ON uv.poll_id = p.id").
		Where(sq.Eq{"uv.user_id": userID})
	polls, total, err := s.page(ctx, from, f, now)
	if err != nil {
		return nil, 0, fmt.Errorf("list polls voted by %s: %w", userID, err)
	}
	return polls, total, nil
}

// PollsByCreator returns every poll created by userID with its events.
func (s *Store) PollsByCreator(ctx context.Context, userID string) ([]*models.Poll, error) {
	var rows []pollRow
	query := s.sb.Select(pollColumns...).From("polls p").
		Where(sq.Eq{"p.created_by": userID}).
		OrderBy("p.published_at DESC", "p.id")
	if err := selectRows(ctx, s.db, &rows, query); err != nil {
		return nil, fmt.Errorf("polls by creator %s: %w", userID, err)
	}
	polls, err := s.hydrate(ctx, s.db, rows)
	if err != nil {
		return nil, fmt.Errorf("polls by creator %s: %w", userID, err)
	}
	return polls, nil
}

// page runs the count and the page query over the same FROM and predicate.
func (s *Store) page(ctx context.Context, from sq.SelectBuilder, f filter.Filter, now time.Time) ([]*models.Poll, int, error) {
	from = from.Where(f.Where("p", now))

	var total int
	if err := get(ctx, s.db, &total, from.Columns("COUNT(*)")); err != nil {
		return nil, 0, err
	}

	query := from.Columns(pollColumns...).OrderBy("p.published_at DESC", "p.id")
	switch {
	case f.Limit > 0:
		query = query.Limit(uint64(f.Limit))
	case f.Offset > 0:
		// SQLite rejects OFFSET without LIMIT.
		query = query.Limit(math.MaxInt64)
	}
	if f.Offset > 0 {
		query = query.Offset(uint64(f.Offset))
	}
	var rows []pollRow
	if err := selectRows(ctx, s.db, &rows, query); err != nil {
		return nil, 0, err
	}
	polls, err := s.hydrate(ctx, s.db, rows)
	if err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

// hydrate attaches options and ordered vote events to poll rows.
func (s *Store) hydrate(ctx context.Context, q execer, rows []pollRow) ([]*models.Poll, error) {
	out := make([]*models.Poll, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	byID := make(map[string]*models.Poll, len(rows))
	for i, r := range rows {
		p, err := r.poll()
		if err != nil {
			return nil, err
		}
		ids[i] = r.ID
		byID[r.ID] = p
		out = append(out, p)
	}

	var options []optionRow
	err := selectRows(ctx, q, &options, s.sb.Select("poll_id", "idx", "label").From("poll_options").
		Where(sq.Eq{"poll_id": ids}).OrderBy("poll_id", "idx"))
	if err != nil {
		return nil, err
	}
	for _, o := range options {
		p := byID[o.PollID]
		p.Options = append(p.Options, o.Label)
	}

	var events []eventRow
	err = selectRows(ctx, q, &events, s.sb.Select("poll_id", "user_id", "option_idx", "voted_at").From("vote_events").
		Where(sq.Eq{"poll_id": ids}).OrderBy("voted_at", "user_id"))
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		p := byID[e.PollID]
		p.Votes = append(p.Votes, models.VoteEvent{
			Option:  e.OptionIdx,
			UserID:  e.UserID,
			VotedAt: time.UnixMilli(e.VotedAt).UTC(),
		})
	}
	return out, nil
}

// loadPoll reads one poll; suffix is appended to the row query (row locks).
func (s *Store) loadPoll(ctx context.Context, q execer, id, suffix string) (*models.Poll, error) {
	query := s.sb.Select(pollColumns...).From("polls p").Where(sq.Eq{"p.id": id})
	if suffix != "" {
		query = query.Suffix(suffix)
	}
	var row pollRow
	err := get(ctx, q, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	polls, err := s.hydrate(ctx, q, []pollRow{row})
	if err != nil {
		return nil, err
	}
	return polls[0], nil
}
