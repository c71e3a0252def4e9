package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	s, err := Open(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
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

func seedPoll(t *testing.T, s *Store, id, creator string, published time.Time, lifetime time.Duration, status models.Visibility) *models.Poll {
	t.Helper()
	p := &models.Poll{
		ID:          id,
		Title:       "Poll " + id,
		Options:     []string{"Red", "Blue", "Green"},
		CreatedBy:   creator,
		Status:      status,
		Categories:  []string{"colors", "fun"},
		PublishedAt: published,
		ExpiresAt:   published.Add(lifetime),
	}
	require.NoError(t, s.CreatePoll(context.Background(), p))
	return p
}

func castDecider(choice int, at time.Time) models.VoteDecider {
	return func(models.VoteSnapshot) (models.VoteOutcome, error) {
		return models.VoteOutcome{Final: models.VotedFor(choice), VotedAt: at}, nil
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	got, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Useru1", got.Username)
	assert.Equal(t, baseTime, got.CreatedAt)
	assert.Empty(t, got.Votes)

	byLogin, err := s.GetUserByLogin(ctx, "USERU2")
	require.NoError(t, err)
	assert.Equal(t, "u2", byLogin.ID)

	byEmail, err := s.GetUserByLogin(ctx, "u2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", byEmail.ID)

	_, err = s.GetUserByLogin(ctx, "nobody")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetUserByID(ctx, "ghost")
	require.ErrorIs(t, err, models.ErrNotFound)

	many, err := s.GetUsers(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	dup := &models.User{ID: "u3", Name: "x", Username: "useru1", Email: "x@example.com", PasswordHash: "h", CreatedAt: baseTime}
	require.ErrorIs(t, s.CreateUser(ctx, dup), models.ErrAlreadyExists)
}

// ---------------------------------------------------------------------------
// Polls
// ---------------------------------------------------------------------------

func TestStore_PollLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	want := seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	got, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want.Options, got.Options)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, "u1", got.CreatedBy)

	views, err := s.IncrementViews(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	require.NoError(t, s.ClosePoll(ctx, "p1"))
	got, err = s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityClosed, got.Status)
	assert.Equal(t, int64(1), got.Views)

	_, err = s.GetPoll(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.IncrementViews(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, s.ClosePoll(ctx, "missing"), models.ErrNotFound)
}

func TestStore_ListPolls_TotalMatchesFilteredSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	for i := 0; i < 8; i++ {
		lifetime := 48 * time.Hour
		if i >= 5 {
			lifetime = time.Minute
		}
		creator, status := "u1", models.VisibilityPublic
		if i%2 == 1 {
			creator, status = "u2", models.VisibilityPrivate
		}
		seedPoll(t, s, fmt.Sprintf("p%d", i), creator, baseTime.Add(time.Duration(i)*time.Minute), lifetime, status)
	}
	now := baseTime.Add(24 * time.Hour)

	page, total, err := s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeActive, Visibility: filter.VisibilityAll, Limit: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "p4", page[0].ID)
	assert.Equal(t, "p3", page[1].ID)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, page[0].Options)

	page, total, err = s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeActive, Visibility: "private", Limit: 10}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 2)

	_, total, err = s.ListPolls(ctx, filter.Filter{Scope: filter.ScopeClosed, Limit: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, total, err = s.ListPolls(ctx, filter.Filter{CreatorID: "u1", Limit: 10}, now)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	for _, p := range page {
		assert.Equal(t, "u1", p.CreatedBy)
	}

	// Offset alone still pages: everything after the sixth newest.
	page, total, err = s.ListPolls(ctx, filter.Filter{Offset: 6}, now)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	require.Len(t, page, 2)
	assert.Equal(t, "p1", page[0].ID)
	assert.Equal(t, "p0", page[1].ID)
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

func TestStore_ApplyVote_CastSwitchRetract(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	user, poll, err := s.ApplyVote(ctx, "u1", "p1", castDecider(2, baseTime))
	require.NoError(t, err)
	assert.Equal(t, []models.VoteRecord{{PollID: "p1", Choice: 2}}, user.Votes)
	assert.Equal(t, map[int]int{0: 0, 1: 0, 2: 1}, poll.FormattedVote())

	var seen models.VoteSnapshot
	switchTo := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		seen = snap
		return models.VoteOutcome{Final: models.VotedFor(0), VotedAt: baseTime.Add(time.Minute)}, nil
	}
	user, poll, err = s.ApplyVote(ctx, "u1", "p1", switchTo)
	require.NoError(t, err)
	assert.Equal(t, models.VotedFor(2), seen.UserSide)
	assert.Equal(t, models.VotedFor(2), seen.PollSide)
	assert.Equal(t, []models.VoteRecord{{PollID: "p1", Choice: 0}}, user.Votes)
	require.Len(t, poll.Votes, 1)
	assert.Equal(t, models.VoteEvent{Option: 0, UserID: "u1", VotedAt: baseTime.Add(time.Minute)}, poll.Votes[0])

	voted, total, err := s.ListPollsVotedBy(ctx, "u1", filter.Filter{Limit: 10}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "p1", voted[0].ID)

	retract := func(models.VoteSnapshot) (models.VoteOutcome, error) {
		return models.VoteOutcome{Final: models.NoVote}, nil
	}
	user, poll, err = s.ApplyVote(ctx, "u1", "p1", retract)
	require.NoError(t, err)
	assert.Empty(t, user.Votes)
	assert.Empty(t, poll.Votes)

	_, total, err = s.ListPollsVotedBy(ctx, "u1", filter.Filter{Limit: 10}, baseTime)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_ApplyVote_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	_, _, err := s.ApplyVote(ctx, "ghost", "p1", castDecider(0, baseTime))
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, _, err = s.ApplyVote(ctx, "u1", "missing", castDecider(0, baseTime))
	require.ErrorIs(t, err, models.ErrNotFound)

	reject := func(models.VoteSnapshot) (models.VoteOutcome, error) {
		return models.VoteOutcome{}, models.ErrInvalidChoice
	}
	_, _, err = s.ApplyVote(ctx, "u1", "p1", reject)
	require.ErrorIs(t, err, models.ErrInvalidChoice)

	p, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Votes)
}

func TestStore_ApplyVote_ConcurrentDistinctUsersAllLand(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner")
	seedPoll(t, s, "p1", "owner", baseTime, time.Hour, models.VisibilityPublic)

	const n = 20
	for i := 0; i < n; i++ {
		seedUser(t, s, fmt.Sprintf("v%d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.ApplyVote(ctx, fmt.Sprintf("v%d", i), "p1", castDecider(i%3, baseTime))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "voter v%d", i)
	}
	p, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, p.Votes, n)
	assert.Equal(t, map[int]int{0: 7, 1: 7, 2: 6}, p.FormattedVote())
}

func TestStore_ApplyVote_ConcurrentTogglesKeepSidesInStep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)

	toggle := func(snap models.VoteSnapshot) (models.VoteOutcome, error) {
		if snap.UserSide.Voted {
			return models.VoteOutcome{Final: models.NoVote}, nil
		}
		return models.VoteOutcome{Final: models.VotedFor(0), VotedAt: baseTime}, nil
	}

	const n = 40
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.ApplyVote(ctx, "u1", "p1", toggle)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// An even number of toggles leaves no vote on either side.
	u, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Votes)
	p, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p.Votes)
}

func TestStore_DeletePoll_DropsVoterRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")
	seedPoll(t, s, "p1", "u1", baseTime, time.Hour, models.VisibilityPublic)
	seedPoll(t, s, "p2", "u1", baseTime.Add(time.Second), time.Hour, models.VisibilityPublic)

	_, _, err := s.ApplyVote(ctx, "u2", "p1", castDecider(1, baseTime))
	require.NoError(t, err)
	_, _, err = s.ApplyVote(ctx, "u2", "p2", castDecider(0, baseTime))
	require.NoError(t, err)

	require.NoError(t, s.DeletePoll(ctx, "p1"))
	require.ErrorIs(t, s.DeletePoll(ctx, "p1"), models.ErrNotFound)

	u2, err := s.GetUserByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []models.VoteRecord{{PollID: "p2", Choice: 0}}, u2.Votes)

	polls, err := s.PollsByCreator(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.Equal(t, "p2", polls[0].ID)
	assert.Len(t, polls[0].Votes, 1)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(nil, "mysql")
	require.Error(t, err)
}
