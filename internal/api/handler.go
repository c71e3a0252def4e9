// Package api exposes the HTTP surface over gin.
package api

import (
	"context"
	"log/slog"

	"github.com/saxenaaman628/pollbox/config"
	"github.com/saxenaaman628/pollbox/internal/controller"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves every route.
type Handler struct {
	polls *controller.PollService
	votes *controller.VoteService
	users *controller.UserService
	stats *controller.StatsService
	store pinger
	auth  config.AuthConfig
	poll  config.PollConfig
	log   *slog.Logger
}

// Services bundles the application services a Handler calls.
type Services struct {
	Polls *controller.PollService
	Votes *controller.VoteService
	Users *controller.UserService
	Stats *controller.StatsService
}

// NewHandler creates a Handler.
func NewHandler(svc Services, store pinger, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		polls: svc.Polls,
		votes: svc.Votes,
		users: svc.Users,
		stats: svc.Stats,
		store: store,
		auth:  cfg.Auth,
		poll:  cfg.Poll,
		log:   logger.With("handler", "api"),
	}
}
