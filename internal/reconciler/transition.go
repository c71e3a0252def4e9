package reconciler

import "github.com/saxenaaman628/pollbox/internal/models"

// Action names the kind of transition a vote produced.
type Action string

const (
	// ActionCast moves NoVote to VotedFor(c).
	ActionCast Action = "cast"
	// ActionRetract moves VotedFor(c) to NoVote when c is voted again.
	ActionRetract Action = "retract"
	// ActionSwitch moves VotedFor(c) to VotedFor(c') for c' != c.
	ActionSwitch Action = "switch"
)

// Transition is the result of applying one vote to a prior state.
type Transition struct {
	Action Action           `json:"action"`
	From   models.VoteState `json:"-"`
	To     models.VoteState `json:"-"`
}

// Decide applies a vote for choice to prior. Voting for the option already
// chosen retracts the vote; there is no other way to retract.
func Decide(prior models.VoteState, choice int) Transition {
	switch {
	case !prior.Voted:
		return Transition{Action: ActionCast, From: prior, To: models.VotedFor(choice)}
	case prior.Choice == choice:
		return Transition{Action: ActionRetract, From: prior, To: models.NoVote}
	default:
		return Transition{Action: ActionSwitch, From: prior, To: models.VotedFor(choice)}
	}
}
