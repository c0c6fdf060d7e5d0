// Package config loads server configuration: built-in defaults, then an
// optional YAML file, then environment variables, then Validate.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultSQLitePath = "data/filpulse.db"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"
	// DSN is a connection string for postgres and a file path for sqlite.
	// Empty means: build one from the DB_* variables (postgres) or use
	// data/filpulse.db (sqlite).
	DSN          string        `yaml:"dsn"`
	MaxConns     int32         `yaml:"max_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// Parts of a postgres DSN, read from DB_USER etc.
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
}

type AuthConfig struct {
	TokenKey string `yaml:"token_key"`
}

// OAuthConfig holds the GitHub OAuth app. Leaving ClientID empty disables
// POST /authenticate.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:       DriverPostgres,
			MaxConns:     10,
			QueryTimeout: 10 * time.Second,
			Host:         "localhost",
			Port:         5432,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// OAuthEnabled reports whether the GitHub exchange is configured.
func (c *Config) OAuthEnabled() bool {
	return c.OAuth.ClientID != ""
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	db := c.Database
	if db.DSN != "" {
		return db.DSN
	}
	if db.Driver == DriverSQLite {
		return defaultSQLitePath
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.User != "" {
		u.User = url.UserPassword(db.User, db.Password)
		if db.Password == "" {
			u.User = url.User(db.User)
		}
	}
	return u.String()
}

// SlogLevel maps Log.Level to a slog level. Validate has already
// rejected unknown names.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	_ = lvl.UnmarshalText([]byte(c.Log.Level))
	return lvl
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, errors.New("postgres needs DB_DSN or DB_NAME"))
		}
	case DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be positive (got %d)", c.Database.MaxConns))
	}
	if c.Database.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DB_QUERY_TIMEOUT must be positive (got %s)", c.Database.QueryTimeout))
	}
	if len(c.Auth.TokenKey) < 16 {
		errs = append(errs, fmt.Errorf("TOKEN_KEY must be at least 16 characters (current length: %d)", len(c.Auth.TokenKey)))
	}
	if c.OAuthEnabled() && (c.OAuth.ClientSecret == "" || c.OAuth.RedirectURI == "") {
		errs = append(errs, errors.New("CLIENT_ID is set, so CLIENT_SECRET and REDIRECT_URI are required"))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not a level", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json (got %q)", c.Log.Format))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error

	str("HOST", &cfg.Server.Host)
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = parseCSV(v)
	}

	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_DSN", &cfg.Database.DSN)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_HOST", &cfg.Database.Host)
	str("DB_NAME", &cfg.Database.Name)
	if v := os.Getenv("DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_PORT: %w", err))
		}
		cfg.Database.Port = p
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_MAX_CONNS: %w", err))
		}
		cfg.Database.MaxConns = int32(n)
	}
	if v := os.Getenv("DB_QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_QUERY_TIMEOUT: %w", err))
		}
		cfg.Database.QueryTimeout = d
	}

	str("TOKEN_KEY", &cfg.Auth.TokenKey)
	str("CLIENT_ID", &cfg.OAuth.ClientID)
	str("CLIENT_SECRET", &cfg.OAuth.ClientSecret)
	str("REDIRECT_URI", &cfg.OAuth.RedirectURI)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

func parseCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
