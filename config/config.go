package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	Auth   AuthConfig   `yaml:"auth"`
	Poll   PollConfig   `yaml:"poll"`
	Stats  StatsConfig  `yaml:"stats"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"HOST"                    env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"PORT"                    env-default:"8080"`
	Mode            string        `yaml:"mode"             env:"GIN_MODE"                env-default:"release"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"redis"`
	// DSN is the database connection string for the postgres and sqlite drivers.
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_URI"      env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"    env:"JWT_SECRET"         env-required:"true"`
	JWTIssuer    string        `yaml:"jwt_issuer"    env:"JWT_ISSUER"         env-default:"pollbox"`
	TokenTTL     time.Duration `yaml:"token_ttl"     env:"AUTH_TOKEN_TTL"     env-default:"1h"`
	CookieName   string        `yaml:"cookie_name"   env:"AUTH_COOKIE_NAME"   env-default:"token"`
	CookieSecure bool          `yaml:"cookie_secure" env:"AUTH_COOKIE_SECURE" env-default:"true"`
	BcryptCost   int           `yaml:"bcrypt_cost"   env:"AUTH_BCRYPT_COST"   env-default:"10"`
}

// PollConfig holds poll defaults and policies.
type PollConfig struct {
	DefaultLifetime time.Duration `yaml:"default_lifetime" env:"POLL_DEFAULT_LIFETIME" env-default:"168h"`
	// DeletePolicy is "any" (any authenticated user may delete) or "creator".
	DeletePolicy string `yaml:"delete_policy" env:"POLL_DELETE_POLICY" env-default:"any"`
	DefaultLimit int    `yaml:"default_limit" env:"POLL_DEFAULT_LIMIT" env-default:"10"`
	MaxLimit     int    `yaml:"max_limit"     env:"POLL_MAX_LIMIT"     env-default:"100"`
}

// StatsConfig holds dashboard aggregation settings.
type StatsConfig struct {
	UTCOffset  string `yaml:"utc_offset"  env:"STATS_UTC_OFFSET"  env-default:"+05:30"`
	WindowDays int    `yaml:"window_days" env:"STATS_WINDOW_DAYS" env-default:"7"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// LoadEnv loads a .env file into the process environment if one exists.
func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
}

// GetEnv returns the environment value for key or fallback when unset.
func GetEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// Load reads configuration from CONFIG_PATH (YAML) when set, otherwise from
// the environment and defaults.
func Load() (*Config, error) {
	var cfg Config

	if path := GetEnv("CONFIG_PATH", ""); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
