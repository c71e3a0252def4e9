package redishandler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func seedUser(t *testing.T, s *Store, id string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		Name:         "Name " + id,
		Username:     "User" + id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    baseTime,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedPoll(t *testing.T, s *Store, id, creator string, published time.Time, expires time.Duration, status models.Visibility) *models.Poll {
	t.Helper()
	p := &models.Poll{
		ID:          id,
		Title:       "Poll " + id,
		Options:     []string{"Red", "Blue"},
		CreatedBy:   creator,
		Status:      status,
		Categories:  []string{"colors"},
		PublishedAt: published,
		ExpiresAt:   published.Add(expires),
	}
	require.NoError(t, s.CreatePoll(context.Background(), p))
	return p
}

// castDecider always ends in VotedFor(choice).
func castDecider(choice int, at time.Time) models.VoteDecider {
	return func(models.VoteSnapshot) (models.VoteOutcome, error) {
		return models.VoteOutcome{Final: models.VotedFor(choice), VotedAt: at}, nil
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestStore_CreateAndGetUser(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	got, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Useru1", got.Username)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, baseTime, got.CreatedAt)
	assert.Empty(t, got.Votes)

	byName, err := s.GetUserByLogin(ctx, "useru1")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	byEmail, err := s.GetUserByLogin(ctx, "U1@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = s.GetUserByLogin(ctx, "nobody")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_CreateUser_Duplicate(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	seedUser(t, s, "u1")

	dup := &models.User{ID: "u2", Username: "USERU1", Email: "fresh@example.com", CreatedAt: baseTime}
	require.ErrorIs(t, s.CreateUser(context.Background(), dup), models.ErrAlreadyExists)

	dup = &models.User{ID: "u3", Username: "fresh", Email: "u1@example.com", CreatedAt: baseTime}
	require.ErrorIs(t, s.CreateUser(context.Background(), dup), models.ErrAlreadyExists)
}

func TestStore_GetUsers(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	got, err := s.GetUsers(context.Background(), []string{"u1", "u2", "u1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Name u2", got["u2"].Name)
}

// ---------------------------------------------------------------------------
// Polls
// ---------------------------------------------------------------------------

func TestStore_CreateAndGetPoll(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	want := seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPrivate)

	got, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, []string{"Red", "Blue"}, got.Options)
	assert.Equal(t, []string{"colors"}, got.Categories)
	assert.Equal(t, models.VisibilityPrivate, got.Status)
	assert.Equal(t, "u1", got.CreatedBy)
	assert.Equal(t, want.ExpiresAt, got.ExpiresAt)
	assert.Empty(t, got.Votes)

	_, err = s.GetPoll(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_IncrementViewsAndClose(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	n, err := s.IncrementViews(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.IncrementViews(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.IncrementViews(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.ClosePoll(ctx, "p1"))
	got, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityClosed, got.Status)
	assert.Equal(t, int64(2), got.Views)

	require.ErrorIs(t, s.ClosePoll(ctx, "missing"), models.ErrNotFound)
}

func TestStore_ListPolls_TotalMatchesFilteredSet(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	// Five active polls and three expired ones, published a minute apart.
	for i := 0; i < 8; i++ {
		lifetime := 48 * time.Hour
		if i >= 5 {
			lifetime = time.Minute
		}
		creator := "u1"
		if i%2 == 1 {
			creator = "u2"
		}
		seedPoll(t, s, fmt.Sprintf("p%d", i), creator, baseTime.Add(time.Duration(i)*time.Minute), lifetime, models.VisibilityPublic)
	}
	now := baseTime.Add(24 * time.Hour)

	page, total, err := s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeActive, Visibility: filter.VisibilityAll, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "p4", page[0].ID)
	assert.Equal(t, "p3", page[1].ID)

	page, total, err = s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeActive, Limit: 2, Offset: 4}, now)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 1)
	assert.Equal(t, "p0", page[0].ID)

	_, total, err = s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeClosed, Limit: 10}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, total, err = s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeAll, CreatorID: "u2", Limit: 10}, now)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for _, p := range page {
		assert.Equal(t, "u2", p.CreatedBy)
	}
}

func TestStore_ApplyVote_WritesBothSides(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	votedAt := baseTime.Add(time.Minute)
	user, poll, err := s.ApplyVote(ctx, "u1", "p1", castDecider(1, votedAt))
	require.NoError(t, err)
	assert.Equal(t, []models.VoteRecord{{PollID: "p1", Choice: 1}}, user.Votes)
	require.Len(t, poll.Votes, 1)
	assert.Equal(t, models.VoteEvent{Option: 1, UserID: "u1", VotedAt: votedAt}, poll.Votes[0])

	assert.Equal(t, "1", mr.HGet("user:u1:votes", "p1"))
	assert.NotEmpty(t, mr.HGet("poll:p1:votes", "u1"))

	stored, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, poll.Votes, stored.Votes)

	voted, total, err := s.ListPollsVotedBy(ctx, "u1", filter.Filter{Limit: 10}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "p1", voted[0].ID)
}

func TestStore_ApplyVote_RetractClearsBothSides(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	_, _, err := s.ApplyVote(ctx, "u1", "p1", castDecider(0, baseTime))
	require.NoError(t, err)

	var seen models.VoteSnapshot
	retract := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		seen = snap
		return models.VoteOutcome{Final: models.NoVote}, nil
	}
	user, poll, err := s.ApplyVote(ctx, "u1", "p1", retract)
	require.NoError(t, err)

	assert.Equal(t, models.VotedFor(0), seen.UserSide)
	assert.Equal(t, models.VotedFor(0), seen.PollSide)
	assert.Empty(t, user.Votes)
	assert.Empty(t, poll.Votes)
	assert.Empty(t, mr.HGet("user:u1:votes", "p1"))
	assert.Empty(t, mr.HGet("poll:p1:votes", "u1"))
}

func TestStore_ApplyVote_DeciderErrorWritesNothing(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	reject := func(models.VoteSnapshot) (models.VoteOutcome, error) {
		return models.VoteOutcome{}, models.ErrInvalidChoice
	}
	_, _, err := s.ApplyVote(context.Background(), "u1", "p1", reject)
	require.ErrorIs(t, err, models.ErrInvalidChoice)
	assert.False(t, mr.Exists("user:u1:votes"))
	assert.False(t, mr.Exists("poll:p1:votes"))
}

func TestStore_ApplyVote_MissingUserOrPoll(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	_, _, err := s.ApplyVote(ctx, "ghost", "p1", castDecider(0, baseTime))
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, _, err = s.ApplyVote(ctx, "u1", "missing", castDecider(0, baseTime))
	require.ErrorIs(t, err, models.ErrNotFound)
}

// toggleDecider flips the pair: a voted user retracts, anyone else votes 0.
func toggleDecider(at time.Time) models.VoteDecider {
	return func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		if snap.UserSide.Voted {
			return models.VoteOutcome{Final: models.NoVote}, nil
		}
		return models.VoteOutcome{Final: models.VotedFor(0), VotedAt: at}, nil
	}
}

func TestStore_ApplyVote_ConcurrentDistinctUsersAllLand(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner")
	seedPoll(t, s, "p1", "owner", baseTime, time.Hour, models.VisibilityPublic)

	const n = 30
	for i := 0; i < n; i++ {
		seedUser(t, s, fmt.Sprintf("v%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.ApplyVote(ctx, fmt.Sprintf("v%d", i), "p1", castDecider(i%2, baseTime))
		}(i)
		// Views land on poll:p1 while votes are in flight.
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementViews(ctx, "p1")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "voter v%d", i)
	}
	got, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got.Votes, n)
	assert.Equal(t, int64(n), got.Views)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprint(i%2), mr.HGet(fmt.Sprintf("user:v%d:votes", i), "p1"))
	}
}

func TestStore_ApplyVote_ConcurrentTogglesKeepSidesInStep(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	const n = 40
	var (
		wg            sync.WaitGroup
		ok, conflicts atomic.Int64
		unexpected    = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ApplyVote(ctx, "u1", "p1", toggleDecider(baseTime))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, models.ErrConflict):
				conflicts.Add(1)
			default:
				unexpected <- err
			}
		}()
	}
	wg.Wait()
	close(unexpected)

	for err := range unexpected {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, int64(n), ok.Load()+conflicts.Load())
	require.Positive(t, ok.Load())

	record := mr.HGet("user:u1:votes", "p1")
	event := mr.HGet("poll:p1:votes", "u1")
	assert.Equal(t, record == "", event == "", "record %q and event %q disagree", record, event)
	assert.Equal(t, ok.Load()%2 == 1, record != "", "%d toggles applied", ok.Load())
}

func TestStore_ApplyVote_ConflictAfterRetries(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	s.maxRetries = 3
	s.retryDelay = time.Microsecond
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	// Every pass sees its record rewritten before the compare-and-set.
	calls := 0
	racing := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		calls++
		mr.HSet("user:u1:votes", "p1", fmt.Sprint(calls%2))
		return models.VoteOutcome{Final: models.VotedFor(1), VotedAt: baseTime}, nil
	}
	_, _, err := s.ApplyVote(context.Background(), "u1", "p1", racing)
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, 3, calls)
	assert.False(t, mr.Exists("poll:p1:votes"))
}

func TestStore_ApplyVote_RetriesWhenPollCloses(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	var statuses []models.Visibility
	decide := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		statuses = append(statuses, snap.Poll.Status)
		if snap.Poll.Status == models.VisibilityClosed {
			return models.VoteOutcome{}, models.ErrForbidden
		}
		require.NoError(t, s.ClosePoll(ctx, "p1"))
		return models.VoteOutcome{Final: models.VotedFor(0), VotedAt: baseTime}, nil
	}
	_, _, err := s.ApplyVote(ctx, "u1", "p1", decide)
	require.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, []models.Visibility{models.VisibilityPublic, models.VisibilityClosed}, statuses)
	assert.False(t, mr.Exists("poll:p1:votes"))
}

func TestStore_DeletePoll_DropsVoterRecords(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)
	seedPoll(t, s, "p2", "u1", baseTime, time.Hour, models.VisibilityPublic)

	_, _, err := s.ApplyVote(ctx, "u2", "p1", castDecider(1, baseTime))
	require.NoError(t, err)
	_, _, err = s.ApplyVote(ctx, "u2", "p2", castDecider(0, baseTime))
	require.NoError(t, err)

	require.NoError(t, s.DeletePoll(ctx, "p1"))

	_, err = s.GetPoll(ctx, "p1")
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, mr.Exists("poll:p1:options"))
	assert.False(t, mr.Exists("poll:p1:votes"))

	u2, err := s.GetUserByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []models.VoteRecord{{PollID: "p2", Choice: 0}}, u2.Votes)

	polls, err := s.PollsByCreator(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.Equal(t, "p2", polls[0].ID)

	require.ErrorIs(t, s.DeletePoll(ctx, "p1"), models.ErrNotFound)
}
