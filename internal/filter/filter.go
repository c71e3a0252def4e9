// Package filter turns listing query parameters into one predicate that is
// shared by the page query and the count query.
package filter

import (
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/saxenaaman628/pollbox/internal/models"
)

// Scope selects polls by lifecycle.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeActive Scope = "active"
	ScopeClosed Scope = "closed"
)

// VisibilityAll disables the stored status restriction.
const VisibilityAll = "all"

// Filter describes one listing request.
type Filter struct {
	Scope      Scope
	Visibility string
	// CreatorID restricts to polls created by one user when non-empty.
	CreatorID string
	Limit     int
	Offset    int
}

// Params are the raw query values a listing endpoint receives.
type Params struct {
	Q          string
	Visibility string
	Limit      string
	Offset     string
}

// Parse validates raw listing parameters. Empty values fall back to
// scope=all, visibility=all, limit=defaultLimit and offset=0; limit is
// clamped to maxLimit.
func Parse(p Params, defaultLimit, maxLimit int) (Filter, error) {
	f := Filter{
		Scope:      ScopeAll,
		Visibility: VisibilityAll,
		Limit:      defaultLimit,
	}
	var errs []models.FieldError

	if q := strings.ToLower(strings.TrimSpace(p.Q)); q != "" {
		switch Scope(q) {
		case ScopeAll, ScopeActive, ScopeClosed:
			f.Scope = Scope(q)
		default:
			errs = append(errs, models.FieldError{Field: "q", Message: "q must be one of all, active, closed"})
		}
	}

	if v := strings.ToLower(strings.TrimSpace(p.Visibility)); v != "" {
		if v != VisibilityAll && !models.Visibility(v).Valid() {
			errs = append(errs, models.FieldError{Field: "visibility", Message: "visibility must be one of all, public, private, closed"})
		} else {
			f.Visibility = v
		}
	}

	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 0 {
			errs = append(errs, models.FieldError{Field: "limit", Message: "limit must be a non-negative integer"})
		} else if n > 0 {
			f.Limit = n
		}
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	if p.Offset != "" {
		n, err := strconv.Atoi(p.Offset)
		if err != nil || n < 0 {
			errs = append(errs, models.FieldError{Field: "offset", Message: "offset must be a non-negative integer"})
		} else {
			f.Offset = n
		}
	}

	if err := models.NewValidationErrors(errs); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Match reports whether p belongs to the filtered set at now. Pagination is
// not part of the predicate.
func (f Filter) Match(p *models.Poll, now time.Time) bool {
	switch f.Scope {
	case ScopeActive:
		if !p.ExpiresAt.After(now) {
			return false
		}
	case ScopeClosed:
		if p.ExpiresAt.After(now) {
			return false
		}
	}
	if f.Visibility != "" && f.Visibility != VisibilityAll && string(p.Status) != f.Visibility {
		return false
	}
	if f.CreatorID != "" && p.CreatedBy != f.CreatorID {
		return false
	}
	return true
}

// Where renders the same predicate as Match for SQL stores. Columns are
// expires_at (unix milliseconds), status and created_by, qualified by table
// when it is non-empty.
func (f Filter) Where(table string, now time.Time) sq.And {
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}
	where := sq.And{}
	switch f.Scope {
	case ScopeActive:
		where = append(where, sq.Gt{col("expires_at"): now.UnixMilli()})
	case ScopeClosed:
		where = append(where, sq.LtOrEq{col("expires_at"): now.UnixMilli()})
	}
	if f.Visibility != "" && f.Visibility != VisibilityAll {
		where = append(where, sq.Eq{col("status"): f.Visibility})
	}
	if f.CreatorID != "" {
		where = append(where, sq.Eq{col("created_by"): f.CreatorID})
	}
	return where
}

// Page slices items by the filter's offset and limit.
func Page[T any](f Filter, items []T) []T {
	if f.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return items[f.Offset:end]
}
