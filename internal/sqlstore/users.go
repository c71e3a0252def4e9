package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/saxenaaman628/pollbox/internal/models"
)

var userColumns = []string{"id", "name", "username", "email", "password_hash", "avatar", "created_at"}

type userRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Avatar       string `db:"avatar"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) user() *models.User {
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

type voteRecordRow struct {
	PollID string `db:"poll_id"`
	Choice int    `db:"choice"`
}

// CreateUser inserts u. Username and email are unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	insert := s.sb.Insert("users").
		Columns("id", "name", "username", "username_lower", "email", "email_lower", "password_hash", "avatar", "created_at").
		Values(u.ID, u.Name, u.Username, strings.ToLower(u.Username), u.Email, strings.ToLower(u.Email),
			u.PasswordHash, u.Avatar, u.CreatedAt.UnixMilli())

	if err := exec(ctx, s.db, insert); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: user with this email/username: %w", models.ErrAlreadyExists)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID returns the user with their vote records.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.loadUser(ctx, s.db, sq.Eq{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByLogin resolves a username or an email to a user.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return nil, fmt.Errorf("get user by login: %w", models.ErrNotFound)
	}
	u, err := s.loadUser(ctx, s.db, sq.Or{sq.Eq{"username_lower": login}, sq.Eq{"email_lower": login}})
	if err != nil {
		return nil, fmt.Errorf("get user by login %q: %w", login, err)
	}
	return u, nil
}

// GetUsers returns users by id without their vote records.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := selectRows(ctx, s.db, &rows, s.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": ids})); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.user()
	}
	return out, nil
}

func (s *Store) loadUser(ctx context.Context, q execer, where sq.Sqlizer) (*models.User, error) {
	var row userRow
	err := get(ctx, q, &row, s.sb.Select(userColumns...).From("users").Where(where).Limit(1))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var votes []voteRecordRow
	err = selectRows(ctx, q, &votes, s.sb.Select("poll_id", "choice").From("user_votes").
		Where(sq.Eq{"user_id": row.ID}).OrderBy("poll_id"))
	if err != nil {
		return nil, err
	}

	u := row.user()
	for _, v := range votes {
		u.Votes = append(u.Votes, models.VoteRecord{PollID: v.PollID, Choice: v.Choice})
	}
	return u, nil
}
