package models

import "time"

// User is an identity plus the user's own record of what they voted for.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Avatar       string       `json:"avatar,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	Votes        []VoteRecord `json:"vote"`
}

// VoteRecord is the user-side mirror of a vote event. A user holds at most one
// record per poll.
type VoteRecord struct {
	PollID string `json:"poll_id"`
	Choice int    `json:"poll_choice"`
}

// VoteFor returns the user's recorded choice for pollID.
func (u *User) VoteFor(pollID string) (int, bool) {
	for _, v := range u.Votes {
		if v.PollID == pollID {
			return v.Choice, true
		}
	}
	return 0, false
}

// PublicUser is the credential-free identity attached to polls.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Public strips everything but the display identity.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, Name: u.Name, Username: u.Username, Avatar: u.Avatar}
}
