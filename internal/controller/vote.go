package controller

import (
	"context"

	"github.com/saxenaaman628/pollbox/internal/models"
	"github.com/saxenaaman628/pollbox/internal/reconciler"
)

// VoteResult is the state of both sides after a vote.
type VoteResult struct {
	Action reconciler.Action
	User   *models.User
	Poll   *models.PollView
}

// VoteService casts, switches and retracts votes.
type VoteService struct {
	reconciler *reconciler.Reconciler
	polls      *PollService
}

// NewVoteService creates a VoteService.
func NewVoteService(r *reconciler.Reconciler, polls *PollService) *VoteService {
	return &VoteService{reconciler: r, polls: polls}
}

// Vote applies userID's choice on pollID and renders the resulting poll.
func (s *VoteService) Vote(ctx context.Context, userID, pollID, rawChoice string) (*VoteResult, error) {
	res, err := s.reconciler.Apply(ctx, userID, pollID, rawChoice)
	if err != nil {
		return nil, err
	}
	view, err := s.polls.view(ctx, res.Poll)
	if err != nil {
		return nil, err
	}
	return &VoteResult{Action: res.Transition.Action, User: res.User, Poll: view}, nil
}
