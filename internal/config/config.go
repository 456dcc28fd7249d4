// Package config loads process configuration from the environment once at
// startup. The resulting Config is immutable for the life of the process.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds every externally supplied setting. Signing secrets and the
// cache URL have no defaults: a process without them must not start.
type Config struct {
	Addr          string
	AllowedOrigin string

	RedisURL    string
	DatabaseURL string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// CallTimeout bounds every cache and store call made on behalf of a
	// request so a stalled dependency cannot stall the request forever.
	CallTimeout time.Duration

	AvatarBucket   string
	AvatarBaseURL  string
	S3BaseEndpoint string
	ProductionMode bool
	MaxBodyBytes   int64

	// envErrs records malformed environment values seen by FromEnv so
	// Validate can fail fast on them instead of running with defaults.
	envErrs []error
}

// FromEnv reads configuration from environment variables, applying defaults
// for everything except the secrets and connection URLs.
func FromEnv() Config {
	var envErrs []error
	duration := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			envErrs = append(envErrs, fmt.Errorf("config: %s: %w", key, err))
			return def
		}
		return d
	}

	cfg := Config{
		Addr:               envString("COURSEHUB_ADDR", ":8080"),
		AllowedOrigin:      envString("COURSEHUB_ORIGIN", ""),
		RedisURL:           envString("COURSEHUB_REDIS_URL", ""),
		DatabaseURL:        envString("COURSEHUB_DATABASE_URL", ""),
		AccessTokenSecret:  envString("COURSEHUB_ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: envString("COURSEHUB_REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     duration("COURSEHUB_ACCESS_TOKEN_TTL", 20*time.Minute),
		RefreshTokenTTL:    duration("COURSEHUB_REFRESH_TOKEN_TTL", 72*time.Hour),
		CallTimeout:        duration("COURSEHUB_CALL_TIMEOUT", 5*time.Second),
		AvatarBucket:       envString("COURSEHUB_AVATAR_BUCKET", ""),
		AvatarBaseURL:      envString("COURSEHUB_AVATAR_BASE_URL", ""),
		S3BaseEndpoint:     envString("COURSEHUB_S3_ENDPOINT", ""),
		ProductionMode:     envString("COURSEHUB_ENV", "development") == "production",
		MaxBodyBytes:       1 << 20,
	}
	cfg.envErrs = envErrs
	return cfg
}

// Validate fails fast on configuration the process cannot safely run
// without. Signing with an empty secret is a critical vulnerability, so the
// absence of either secret is fatal, as is a missing cache URL.
func (c Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)
	if strings.TrimSpace(c.AccessTokenSecret) == "" {
		errs = append(errs, errors.New("config: access token secret is required"))
	}
	if strings.TrimSpace(c.RefreshTokenSecret) == "" {
		errs = append(errs, errors.New("config: refresh token secret is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("config: access and refresh token secrets must differ"))
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		errs = append(errs, errors.New("config: redis url is required"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("config: token TTLs must be positive"))
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		errs = append(errs, errors.New("config: access TTL must be shorter than refresh TTL"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("config: call timeout must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
