// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ConfigPathEnvVar names the environment variable holding the YAML config path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "/etc/geoplaces/config.yaml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig locates the PostGIS database. URL wins over the discrete fields.
type DatabaseConfig struct {
	URL           string `koanf:"url"`
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	Name          string `koanf:"name"`
	User          string `koanf:"user"`
	Password      string `koanf:"password"`
	MaxConns      int32  `koanf:"max_conns"`
	MigrationsDir string `koanf:"migrations_dir"`
}

// RedisConfig enables login throttling when URL is set.
type RedisConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret"`
	JWTAlgorithm       string        `koanf:"jwt_algorithm"`
	TokenTTLMinutes    int           `koanf:"token_ttl_minutes"`
	AdminUsers         []string      `koanf:"admin_users"`
	BcryptCost         int           `koanf:"bcrypt_cost"`
	LoginMaxAttempts   int           `koanf:"login_max_attempts"`
	LoginLockoutWindow time.Duration `koanf:"login_lockout_window"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:          "db",
			Port:          5432,
			Name:          "geodb",
			User:          "postgres",
			Password:      "postgres",
			MaxConns:      10,
			MigrationsDir: "migrations",
		},
		Auth: AuthConfig{
			JWTAlgorithm:       "HS256",
			TokenTTLMinutes:    60,
			AdminUsers:         []string{},
			BcryptCost:         bcrypt.DefaultCost,
			LoginMaxAttempts:   5,
			LoginLockoutWindow: 15 * time.Minute,
		},
		CORS:      CORSConfig{Origins: []string{"*"}},
		RateLimit: RateLimitConfig{Requests: 120, Window: time.Minute},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// DSN returns the connection string for pgx.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	return u.String()
}

// TokenTTL is the bearer token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("DATABASE_URL or DB_HOST and DB_NAME are required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Auth.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.Auth.JWTAlgorithm)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("JWT_EXPIRES_MINUTES must be positive, got %d", c.Auth.TokenTTLMinutes)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.LoginMaxAttempts <= 0 || c.Auth.LoginLockoutWindow <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS and LOGIN_LOCKOUT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}
}

// NewLogger builds the process logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is invalid: %w", s, err)
	}
	return level, nil
}
