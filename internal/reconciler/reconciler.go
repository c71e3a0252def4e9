// Package reconciler applies vote transitions so that a user's vote record
// and the poll's vote events always agree.
//
// Every transition rewrites both sides inside one store transaction. The
// poll's vote events are the source of truth for the prior state: if a user
// record disagrees with them on entry, the vote is decided from the poll side
// and the user record is overwritten to match.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// Store runs a vote decision atomically against both the user and the poll.
type Store interface {
	ApplyVote(ctx context.Context, userID, pollID string, decide models.VoteDecider) (*models.User, *models.Poll, error)
}

// Result is what a vote produced.
type Result struct {
	User       *models.User
	Poll       *models.Poll
	Transition Transition
}

// Reconciler applies votes.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Reconciler. now defaults to time.Now when nil.
func New(store Store, logger *slog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, logger: logger, now: now}
}

// ParseChoice converts the raw choice query value to an option index.
func ParseChoice(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("choice is required: %w", models.ErrInvalidChoice)
	}
	c, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("choice %q is not a number: %w", raw, models.ErrInvalidChoice)
	}
	return c, nil
}

// Apply records userID voting rawChoice on pollID.
func (r *Reconciler) Apply(ctx context.Context, userID, pollID, rawChoice string) (*Result, error) {
	choice, err := ParseChoice(rawChoice)
	if err != nil {
		return nil, err
	}

	var tr Transition
	decide := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		if !snap.Poll.ValidChoice(choice) {
			return models.VoteOutcome{}, fmt.Errorf("choice %d out of range [0,%d): %w",
				choice, len(snap.Poll.Options), models.ErrInvalidChoice)
		}
		if !snap.Consistent() {
			r.logger.WarnContext(ctx, "repairing vote record drift",
				slog.String("user_id", userID),
				slog.String("poll_id", pollID),
				slog.Any("user_side", snap.UserSide),
				slog.Any("poll_side", snap.PollSide),
			)
		}
		tr = Decide(snap.PollSide, choice)
		return models.VoteOutcome{Final: tr.To, VotedAt: r.now().UTC()}, nil
	}

	user, poll, err := r.store.ApplyVote(ctx, userID, pollID, decide)
	if err != nil {
		return nil, fmt.Errorf("apply vote: %w", err)
	}

	r.logger.DebugContext(ctx, "vote applied",
		slog.String("user_id", userID),
		slog.String("poll_id", pollID),
		slog.String("action", string(tr.Action)),
		slog.Int("choice", choice),
	)
	return &Result{User: user, Poll: poll, Transition: tr}, nil
}
