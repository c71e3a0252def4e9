package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saxenaaman628/pollbox/internal/models"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prior  models.VoteState
		choice int
		want   Transition
	}{
		{
			name:   "cast from no vote",
			prior:  models.NoVote,
			choice: 1,
			want:   Transition{Action: ActionCast, From: models.NoVote, To: models.VotedFor(1)},
		},
		{
			name:   "same choice retracts",
			prior:  models.VotedFor(1),
			choice: 1,
			want:   Transition{Action: ActionRetract, From: models.VotedFor(1), To: models.NoVote},
		},
		{
			name:   "other choice switches",
			prior:  models.VotedFor(1),
			choice: 0,
			want:   Transition{Action: ActionSwitch, From: models.VotedFor(1), To: models.VotedFor(0)},
		},
		{
			name:   "cast option zero",
			prior:  models.NoVote,
			choice: 0,
			want:   Transition{Action: ActionCast, From: models.NoVote, To: models.VotedFor(0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Decide(tt.prior, tt.choice))
		})
	}
}
