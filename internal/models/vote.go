package models

import "time"

// VoteState is what one side of the store says about a (user, poll) pair.
type VoteState struct {
	Voted  bool
	Choice int
}

// NoVote is the state of a pair with no recorded vote.
var NoVote = VoteState{}

// VotedFor is the state of a pair whose vote names choice.
func VotedFor(choice int) VoteState {
	return VoteState{Voted: true, Choice: choice}
}

// VoteSnapshot is read inside a vote transaction: the poll and both sides'
// view of the user's vote on it.
type VoteSnapshot struct {
	Poll     *Poll
	UserSide VoteState
	PollSide VoteState
}

// Consistent reports whether the user record and the poll event agree.
func (s VoteSnapshot) Consistent() bool {
	return s.UserSide == s.PollSide
}

// VoteOutcome is the state both sides must hold when the transaction
// commits. VotedAt stamps the new event when Final.Voted is set.
type VoteOutcome struct {
	Final   VoteState
	VotedAt time.Time
}

// VoteDecider computes the outcome of a vote from a snapshot. Returning an
// error aborts the transaction without writing anything.
type VoteDecider func(VoteSnapshot) (VoteOutcome, error)
