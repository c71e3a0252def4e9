package redishandler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// userRecord is the flat layout of the user:{id} hash.
type userRecord struct {
	ID           string `redis:"id"`
	Name         string `redis:"name"`
	Username     string `redis:"username"`
	Email        string `redis:"email"`
	PasswordHash string `redis:"password_hash"`
	Avatar       string `redis:"avatar"`
	CreatedAt    int64  `redis:"created_at"`
}

// pollRecord is the flat layout of the poll:{id} hash. Options and vote
// events live in their own hashes.
type pollRecord struct {
	ID          string `redis:"id"`
	Title       string `redis:"title"`
	CreatedBy   string `redis:"created_by"`
	Status      string `redis:"status"`
	Category    string `redis:"category"`
	Image       string `redis:"image"`
	PublishedAt int64  `redis:"published_at"`
	ExpiresAt   int64  `redis:"expires_at"`
	Views       int64  `redis:"views"`
}

// eventValue is the JSON value stored per voter in poll:{id}:votes.
type eventValue struct {
	Option  int   `json:"option"`
	VotedAt int64 `json:"votedAt"`
}

// decodeHash maps a Redis hash onto out. Hash values are strings, so numeric
// fields rely on weak typing.
func decodeHash(data map[string]string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "redis",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

func (r userRecord) hash() map[string]any {
	return map[string]any{
		"id":            r.ID,
		"name":          r.Name,
		"username":      r.Username,
		"email":         r.Email,
		"password_hash": r.PasswordHash,
		"avatar":        r.Avatar,
		"created_at":    r.CreatedAt,
	}
}

func newUserRecord(u *models.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt.UnixMilli(),
	}
}

func (r userRecord) user() *models.User {
	return &models.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Avatar:       r.Avatar,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
		Votes:        []models.VoteRecord{},
	}
}

func decodeUser(data map[string]string) (*models.User, error) {
	var rec userRecord
	if err := decodeHash(data, &rec); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return rec.user(), nil
}

// decodeVoteRecords turns user:{id}:votes into records ordered by poll id.
func decodeVoteRecords(data map[string]string) ([]models.VoteRecord, error) {
	out := make([]models.VoteRecord, 0, len(data))
	for pollID, raw := range data {
		c, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("decode vote record for poll %s: %w", pollID, err)
		}
		out = append(out, models.VoteRecord{PollID: pollID, Choice: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PollID < out[j].PollID })
	return out, nil
}

func newPollRecord(p *models.Poll) (pollRecord, error) {
	cats := p.Categories
	if cats == nil {
		cats = []string{}
	}
	category, err := json.Marshal(cats)
	if err != nil {
		return pollRecord{}, fmt.Errorf("encode categories: %w", err)
	}
	return pollRecord{
		ID:          p.ID,
		Title:       p.Title,
		CreatedBy:   p.CreatedBy,
		Status:      string(p.Status),
		Category:    string(category),
		Image:       p.Image,
		PublishedAt: p.PublishedAt.UnixMilli(),
		ExpiresAt:   p.ExpiresAt.UnixMilli(),
		Views:       p.Views,
	}, nil
}

func (r pollRecord) hash() map[string]any {
	return map[string]any{
		"id":           r.ID,
		"title":        r.Title,
		"created_by":   r.CreatedBy,
		"status":       r.Status,
		"category":     r.Category,
		"image":        r.Image,
		"published_at": r.PublishedAt,
		"expires_at":   r.ExpiresAt,
		"views":        r.Views,
	}
}

func (r pollRecord) poll() (*models.Poll, error) {
	var cats []string
	if r.Category != "" {
		if err := json.Unmarshal([]byte(r.Category), &cats); err != nil {
			return nil, fmt.Errorf("decode categories of poll %s: %w", r.ID, err)
		}
	}
	if cats == nil {
		cats = []string{}
	}
	return &models.Poll{
		ID:          r.ID,
		Title:       r.Title,
		CreatedBy:   r.CreatedBy,
		Status:      models.Visibility(r.Status),
		Categories:  cats,
		Image:       r.Image,
		PublishedAt: time.UnixMilli(r.PublishedAt).UTC(),
		ExpiresAt:   time.UnixMilli(r.ExpiresAt).UTC(),
		Views:       r.Views,
		Options:     []string{},
		Votes:       []models.VoteEvent{},
	}, nil
}

func decodePollRecord(data map[string]string) (*models.Poll, error) {
	var rec pollRecord
	if err := decodeHash(data, &rec); err != nil {
		return nil, fmt.Errorf("decode poll: %w", err)
	}
	return rec.poll()
}

func optionsHash(options []string) map[string]any {
	out := make(map[string]any, len(options))
	for i, opt := range options {
		out[strconv.Itoa(i)] = opt
	}
	return out
}

// decodeOptions restores option order from the index-keyed hash.
func decodeOptions(data map[string]string) ([]string, error) {
	options := make([]string, len(data))
	for k, v := range data {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(options) {
			return nil, fmt.Errorf("bad option index %q", k)
		}
		options[i] = v
	}
	return options, nil
}

func encodeEvent(e models.VoteEvent) (string, error) {
	b, err := json.Marshal(eventValue{Option: e.Option, VotedAt: e.VotedAt.UnixMilli()})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeEvents turns poll:{id}:votes into events in map order.
func decodeEvents(data map[string]string) ([]models.VoteEvent, error) {
	events := make([]models.VoteEvent, 0, len(data))
	for userID, raw := range data {
		var v eventValue
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode vote event of user %s: %w", userID, err)
		}
		events = append(events, models.VoteEvent{
			Option:  v.Option,
			UserID:  userID,
			VotedAt: time.UnixMilli(v.VotedAt).UTC(),
		})
	}
	return events, nil
}
