// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	OIDC      OIDCConfig
	Session   SessionConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port            int
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	// TrustProxyHeaders takes the client IP from X-Forwarded-For/X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool
}

type StoreConfig struct {
	Driver        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration
}

// RedisConfig is optional; an empty Addr disables the replay guard and the
// shared rate limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OIDCConfig is optional; an empty Issuer disables login and Bearer ID
// tokens, leaving session cookies as the only credential.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

type WebhookConfig struct {
	Secret    string
	ReplayTTL time.Duration
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// AdminConfig lists identities promoted to admin at startup.
type AdminConfig struct {
	ExternalIDs []string
}

// Load reads configuration from .env and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "data/hypeshelf.db")
	v.SetDefault("MONGO_DATABASE", "hypeshelf")
	v.SetDefault("MONGO_TIMEOUT", "10s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_SECURE_COOKIE", false)
	v.SetDefault("WEBHOOK_REPLAY_TTL", "72h")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	level, err := parseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	port := v.GetInt("PORT")
	cfg := &Config{
		Server: ServerConfig{
			Port:              port,
			LogLevel:          level,
			ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
			TrustProxyHeaders: v.GetBool("TRUST_PROXY_HEADERS"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
			SQLitePath:    v.GetString("DB_PATH"),
			MongoURI:      v.GetString("MONGO_URI"),
			MongoDatabase: v.GetString("MONGO_DATABASE"),
			MongoTimeout:  v.GetDuration("MONGO_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		OIDC: OIDCConfig{
			Issuer:       v.GetString("OIDC_ISSUER"),
			ClientID:     v.GetString("OIDC_CLIENT_ID"),
			ClientSecret: v.GetString("OIDC_CLIENT_SECRET"),
			RedirectURL:  v.GetString("OIDC_REDIRECT_URL"),
		},
		Session: SessionConfig{
			Secret:       v.GetString("SESSION_SECRET"),
			TTL:          v.GetDuration("SESSION_TTL"),
			SecureCookie: v.GetBool("SESSION_SECURE_COOKIE"),
		},
		Webhook: WebhookConfig{
			Secret:    v.GetString("WEBHOOK_SECRET"),
			ReplayTTL: v.GetDuration("WEBHOOK_REPLAY_TTL"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Admin: AdminConfig{
			ExternalIDs: splitList(v.GetString("ADMIN_EXTERNAL_IDS")),
		},
	}
	if cfg.OIDC.RedirectURL == "" {
		cfg.OIDC.RedirectURL = fmt.Sprintf("http://localhost:%d/auth/callback", port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Server.Port))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of sqlite, mongo", c.Store.Driver))
	}
	if len(c.Session.Secret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	if c.OIDC.Issuer != "" && c.OIDC.ClientID == "" {
		errs = append(errs, errors.New("OIDC_CLIENT_ID is required when OIDC_ISSUER is set"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return level, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
