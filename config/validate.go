package config

import (
	"errors"
	"fmt"

	"github.com/saxenaaman628/pollbox/internal/stats"
)

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DeleteAny     = "any"
	DeleteCreator = "creator"
)

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	switch c.Store.Driver {
	case DriverRedis:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL required for store driver %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range [4,31]", c.Auth.BcryptCost))
	}

	switch c.Poll.DeletePolicy {
	case DeleteAny, DeleteCreator:
	default:
		errs = append(errs, fmt.Errorf("unknown poll delete policy %q", c.Poll.DeletePolicy))
	}
	if c.Poll.DefaultLifetime <= 0 {
		errs = append(errs, errors.New("poll default lifetime must be positive"))
	}
	if c.Poll.DefaultLimit <= 0 || c.Poll.MaxLimit < c.Poll.DefaultLimit {
		errs = append(errs, fmt.Errorf("poll limits invalid: default %d, max %d", c.Poll.DefaultLimit, c.Poll.MaxLimit))
	}

	if _, err := stats.ParseOffset(c.Stats.UTCOffset); err != nil {
		errs = append(errs, err)
	}
	if c.Stats.WindowDays <= 0 {
		errs = append(errs, errors.New("stats window must be at least one day"))
	}

	return errors.Join(errs...)
}
