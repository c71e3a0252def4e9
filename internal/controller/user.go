package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saxenaaman628/pollbox/internal/models"
	"github.com/saxenaaman628/pollbox/internal/utils"
)

// AuthResult is a signed-in user and their access token.
type AuthResult struct {
	User  *models.User
	Token string
	// ExpiresIn is how long Token stays valid.
	ExpiresIn time.Duration
}

// UserService handles signup, login and profile lookups.
type UserService struct {
	users      UserStore
	tokens     *utils.TokenManager
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

// NewUserService creates a UserService. now defaults to time.Now when nil.
func NewUserService(users UserStore, tokens *utils.TokenManager, bcryptCost int, logger *slog.Logger, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, tokens: tokens, bcryptCost: bcryptCost, logger: logger, now: now}
}

// Signup registers a user and signs them in.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
		Votes:        []models.VoteRecord{},
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, fmt.Errorf("user with this email/username exists: %w", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", u.ID))
	return s.issue(u)
}

// Login verifies credentials given a username or an email.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByLogin(ctx, in.Login())
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user with this email/username does not exist: %w", models.ErrUnauthorized)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !utils.CheckPassword(u.PasswordHash, in.Password) {
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", u.ID))
	return s.issue(u)
}

// Get returns the user with their vote records.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserService) issue(u *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateJWTToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{User: u, Token: token, ExpiresIn: s.tokens.TTL()}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
