// Package controller holds the application services behind the HTTP API:
// poll lifecycle, voting, identity and dashboard statistics.
package controller

import (
	"context"
	"time"

	"github.com/saxenaaman628/pollbox/internal/filter"
	"github.com/saxenaaman628/pollbox/internal/models"
	"github.com/saxenaaman628/pollbox/internal/reconciler"
)

// UserStore persists identities.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// PollStore persists polls. List methods return one page and the total
// number of polls matching the filter.
type PollStore interface {
	CreatePoll(ctx context.Context, p *models.Poll) error
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	IncrementViews(ctx context.Context, id string) (int64, error)
	ClosePoll(ctx context.Context, id string) error
	DeletePoll(ctx context.Context, id string) error
	ListPolls(ctx context.Context, f filter.Filter, now time.Time) ([]*models.Poll, int, error)
	ListPollsVotedBy(ctx context.Context, userID string, f filter.Filter, now time.Time) ([]*models.Poll, int, error)
	PollsByCreator(ctx context.Context, userID string) ([]*models.Poll, error)
}

// Store is everything the services need from a backend.
type Store interface {
	UserStore
	PollStore
	reconciler.Store
	Ping(ctx context.Context) error
}
