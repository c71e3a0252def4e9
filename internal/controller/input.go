package controller

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// StringList decodes from either a JSON string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one = strings.TrimSpace(one); one == "" {
			*l = StringList{}
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = StringList(many)
	return nil
}

// CreatePollInput is what a creator submits for a new poll.
type CreatePollInput struct {
	Title     string
	Options   []string
	ExpiresAt *time.Time
	Category  []string
	Status    models.Visibility
	Image     string
}

func (i *CreatePollInput) normalize() {
	i.Title = strings.TrimSpace(i.Title)
	for n, opt := range i.Options {
		i.Options[n] = strings.TrimSpace(opt)
	}
	cats := make([]string, 0, len(i.Category))
	for _, c := range i.Category {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	i.Category = cats
	if i.Status == "" {
		i.Status = models.VisibilityPublic
	}
	i.Image = strings.TrimSpace(i.Image)
}

// Validate checks the input as of now.
func (i *CreatePollInput) Validate(now time.Time) error {
	var errs []models.FieldError
	if i.Title == "" {
		errs = append(errs, models.FieldError{Field: "title", Message: "Please provide title for the poll"})
	}
	if len(i.Options) < 2 {
		errs = append(errs, models.FieldError{Field: "options", Message: "Please provide at least two options"})
	}
	for _, opt := range i.Options {
		if opt == "" {
			errs = append(errs, models.FieldError{Field: "options", Message: "Options cannot be empty"})
			break
		}
	}
	if i.ExpiresAt != nil && !i.ExpiresAt.After(now) {
		errs = append(errs, models.FieldError{Field: "expiresAt", Message: "expiresAt must be in the future"})
	}
	if i.Status != models.VisibilityPublic && i.Status != models.VisibilityPrivate {
		errs = append(errs, models.FieldError{Field: "status", Message: "status must be public or private"})
	}
	return models.NewValidationErrors(errs)
}

// SignupInput registers a new user.
type SignupInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

func (i *SignupInput) normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Username = strings.TrimSpace(i.Username)
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
}

// Validate requires every field.
func (i *SignupInput) Validate() error {
	if i.Name == "" || i.Username == "" || i.Email == "" || i.Password == "" {
		return models.NewValidationError("body", "You have to provide all the fields")
	}
	if strings.Contains(i.Username, "@") {
		return models.NewValidationError("username", "Username cannot contain @")
	}
	if !strings.Contains(i.Email, "@") {
		return models.NewValidationError("email", "Please provide a valid email")
	}
	return nil
}

// LoginInput authenticates by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Login is the identifier to look the user up by.
func (i *LoginInput) Login() string {
	if u := strings.TrimSpace(i.Username); u != "" {
		return u
	}
	return strings.TrimSpace(i.Email)
}

// Validate requires an identifier and a password.
func (i *LoginInput) Validate() error {
	if i.Login() == "" || i.Password == "" {
		return models.NewValidationError("body", "Provide username/email and password")
	}
	return nil
}
