package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saxenaaman628/pollbox/config"
	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
)

// PollPage is one page of polls with the total number matching the filter.
type PollPage struct {
	Polls []models.PollView
	Total int
}

// PollService manages the poll lifecycle.
type PollService struct {
	polls  PollStore
	users  UserStore
	cfg    config.PollConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPollService creates a PollService. now defaults to time.Now when nil.
func NewPollService(polls PollStore, users UserStore, cfg config.PollConfig, logger *slog.Logger, now func() time.Time) *PollService {
	if now == nil {
		now = time.Now
	}
	return &PollService{polls: polls, users: users, cfg: cfg, logger: logger, now: now}
}

// Create validates in and stores a new poll owned by creatorID.
func (s *PollService) Create(ctx context.Context, creatorID string, in CreatePollInput) (*models.PollView, error) {
	now := s.now().UTC()
	in.normalize()
	if err := in.Validate(now); err != nil {
		return nil, err
	}

	expires := now.Add(s.cfg.DefaultLifetime)
	if in.ExpiresAt != nil {
		expires = in.ExpiresAt.UTC()
	}

	p := &models.Poll{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Options:     in.Options,
		CreatedBy:   creatorID,
		Status:      in.Status,
		Categories:  in.Category,
		Image:       in.Image,
		PublishedAt: now,
		ExpiresAt:   expires,
	}
	if err := s.polls.CreatePoll(ctx, p); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}

	s.logger.InfoContext(ctx, "poll created",
		slog.String("poll_id", p.ID),
		slog.String("user_id", creatorID),
		slog.Int("options", len(p.Options)),
	)

	creator, err := s.users.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}
	view := models.NewPollView(p, creator.Public(), now)
	return &view, nil
}

// Get returns a poll with its creator and counts the view.
func (s *PollService) Get(ctx context.Context, id string) (*models.PollView, error) {
	if _, err := s.polls.IncrementViews(ctx, id); err != nil {
		return nil, fmt.Errorf("count view: %w", err)
	}
	p, err := s.polls.GetPoll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return s.view(ctx, p)
}

// List returns public listings for f.
func (s *PollService) List(ctx context.Context, f filter.Filter) (*PollPage, error) {
	polls, total, err := s.polls.ListPolls(ctx, f, s.now())
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	return s.page(ctx, polls, total)
}

// ListByCreator returns polls created by userID.
func (s *PollService) ListByCreator(ctx context.Context, userID string, f filter.Filter) (*PollPage, error) {
	f.CreatorID = userID
	return s.List(ctx, f)
}

// ListVotedBy returns polls userID currently holds a vote on.
func (s *PollService) ListVotedBy(ctx context.Context, userID string, f filter.Filter) (*PollPage, error) {
	polls, total, err := s.polls.ListPollsVotedBy(ctx, userID, f, s.now())
	if err != nil {
		return nil, fmt.Errorf("list voted polls: %w", err)
	}
	return s.page(ctx, polls, total)
}

// Delete removes a poll. Under the creator policy only the creator may.
func (s *PollService) Delete(ctx context.Context, callerID, id string) error {
	p, err := s.polls.GetPoll(ctx, id)
	if err != nil {
		return fmt.Errorf("get poll: %w", err)
	}
	if s.cfg.DeletePolicy == config.DeleteCreator && p.CreatedBy != callerID {
		return fmt.Errorf("delete poll %s: %w", id, models.ErrForbidden)
	}
	if err := s.polls.DeletePoll(ctx, id); err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	s.logger.InfoContext(ctx, "poll deleted",
		slog.String("poll_id", id),
		slog.String("user_id", callerID),
	)
	return nil
}

// Close marks a poll closed. Only its creator may.
func (s *PollService) Close(ctx context.Context, callerID, id string) (*models.PollView, error) {
	p, err := s.polls.GetPoll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	if p.CreatedBy != callerID {
		return nil, fmt.Errorf("close poll %s: %w", id, models.ErrForbidden)
	}
	if err := s.polls.ClosePoll(ctx, id); err != nil {
		return nil, fmt.Errorf("close poll: %w", err)
	}
	p.Status = models.VisibilityClosed
	s.logger.InfoContext(ctx, "poll closed", slog.String("poll_id", id))
	return s.view(ctx, p)
}

func (s *PollService) view(ctx context.Context, p *models.Poll) (*models.PollView, error) {
	var creator *models.PublicUser
	if p.CreatedBy != "" {
		u, err := s.users.GetUserByID(ctx, p.CreatedBy)
		switch {
		case err == nil:
			creator = u.Public()
		case !isNotFound(err):
			return nil, fmt.Errorf("load creator: %w", err)
		}
	}
	view := models.NewPollView(p, creator, s.now())
	return &view, nil
}

func (s *PollService) page(ctx context.Context, polls []*models.Poll, total int) (*PollPage, error) {
	ids := make([]string, 0, len(polls))
	for _, p := range polls {
		if p.CreatedBy != "" {
			ids = append(ids, p.CreatedBy)
		}
	}
	creators, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load creators: %w", err)
	}

	now := s.now()
	out := &PollPage{Polls: make([]models.PollView, 0, len(polls)), Total: total}
	for _, p := range polls {
		out.Polls = append(out.Polls, models.NewPollView(p, creators[p.CreatedBy].Public(), now))
	}
	return out, nil
}
