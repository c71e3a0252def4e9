package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Visibility is the stored poll_status of a poll.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityClosed  Visibility = "closed"
)

// Valid reports whether v is one of the stored statuses.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityClosed:
		return true
	}
	return false
}

// UnmarshalJSON accepts either a status string or a boolean, where true means
// private and false means public.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = VisibilityPrivate
		} else {
			*v = VisibilityPublic
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("status must be a string or boolean")
	}
	*v = Visibility(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// Poll is a stored poll together with its vote events.
type Poll struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Options     []string    `json:"options"`
	CreatedBy   string      `json:"-"`
	Status      Visibility  `json:"poll_status"`
	Categories  []string    `json:"category"`
	Image       string      `json:"image,omitempty"`
	PublishedAt time.Time   `json:"publishedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Views       int64       `json:"views"`
	Votes       []VoteEvent `json:"votes"`
}

// VoteEvent records one voter's choice on a poll.
type VoteEvent struct {
	Option  int       `json:"option"`
	UserID  string    `json:"user"`
	VotedAt time.Time `json:"votedAt"`
}

// EventFor returns the vote event cast by userID, if any.
func (p *Poll) EventFor(userID string) (VoteEvent, bool) {
	for _, e := range p.Votes {
		if e.UserID == userID {
			return e, true
		}
	}
	return VoteEvent{}, false
}

// ValidChoice reports whether choice indexes one of the poll's options.
func (p *Poll) ValidChoice(choice int) bool {
	return choice >= 0 && choice < len(p.Options)
}

// SortVotes orders vote events oldest first, then by voter.
func (p *Poll) SortVotes() {
	sort.SliceStable(p.Votes, func(i, j int) bool {
		a, b := p.Votes[i], p.Votes[j]
		if a.VotedAt.Equal(b.VotedAt) {
			return a.UserID < b.UserID
		}
		return a.VotedAt.Before(b.VotedAt)
	})
}

// FormattedVote counts events per option. Every valid option index is
// present, and events pointing outside the option list are ignored.
func (p *Poll) FormattedVote() map[int]int {
	counts := make(map[int]int, len(p.Options))
	for i := range p.Options {
		counts[i] = 0
	}
	for _, e := range p.Votes {
		if p.ValidChoice(e.Option) {
			counts[e.Option]++
		}
	}
	return counts
}

// IsLive reports whether the poll has not yet expired at now.
func (p *Poll) IsLive(now time.Time) bool {
	return p.ExpiresAt.After(now)
}

// TotalVotes is the number of vote events on the poll.
func (p *Poll) TotalVotes() int {
	return len(p.Votes)
}

// PollView is the presentation form of a poll with derived fields filled in.
type PollView struct {
	*Poll
	User          *PublicUser `json:"user,omitempty"`
	FormattedVote map[int]int `json:"formattedVote"`
	IsLive        bool        `json:"isLive"`
	TotalVotes    int         `json:"totalVotes"`
}

// NewPollView derives the read-only fields of p as of now.
func NewPollView(p *Poll, creator *PublicUser, now time.Time) PollView {
	return PollView{
		Poll:          p,
		User:          creator,
		FormattedVote: p.FormattedVote(),
		IsLive:        p.IsLive(now),
		TotalVotes:    p.TotalVotes(),
	}
}
