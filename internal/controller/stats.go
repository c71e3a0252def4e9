package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/saxenaaman628/pollbox/internal/stats"
)

// StatsService builds a creator's dashboard.
type StatsService struct {
	polls PollStore
	agg   *stats.Aggregator
	now   func() time.Time
}

// NewStatsService creates a StatsService. now defaults to time.Now when nil.
func NewStatsService(polls PollStore, agg *stats.Aggregator, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{polls: polls, agg: agg, now: now}
}

// ForCreator summarizes every poll userID created.
func (s *StatsService) ForCreator(ctx context.Context, userID string) (stats.Summary, error) {
	polls, err := s.polls.PollsByCreator(ctx, userID)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("polls by creator: %w", err)
	}
	return s.agg.Summarize(polls, s.now()), nil
}
