// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server reads from the environment.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file path.
	DBPath string `env:"DB_PATH" envDefault:"./data/bowltab.db"`

	// BotToken is the Telegram bot token. It keys initData verification and
	// outbound notifications. Empty disables both (development only).
	BotToken string `env:"BOT_TOKEN"`

	// SessionSecret signs the bearer tokens issued after login.
	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev"`

	// TokenTTL bounds how long an issued bearer token stays valid.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"720h"`

	// InitDataTTL bounds how old a login payload's auth_date may be.
	// Zero disables the freshness check.
	InitDataTTL time.Duration `env:"INITDATA_TTL" envDefault:"24h"`

	// DevAllowAnon permits logging in without initData as a fixed guest
	// identity. Local debugging outside Telegram only.
	DevAllowAnon bool `env:"DEV_ALLOW_ANON"`

	// CORSAllowedOrigins is a comma-separated origin allowlist. Empty means
	// allow any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	// DefaultBowlCost is used when a session is created without an explicit
	// default, in the smallest currency unit.
	DefaultBowlCost int64 `env:"DEFAULT_BOWL_COST" envDefault:"1000"`

	// MaxBowlCost is the upper bound accepted for any bowl cost.
	MaxBowlCost int64 `env:"MAX_BOWL_COST" envDefault:"1000000"`

	// AuditCapacity is how many audit entries are retained.
	AuditCapacity int `env:"AUDIT_CAPACITY" envDefault:"1000"`

	// AuditPageMax caps the limit a caller may request from the audit log.
	AuditPageMax int `env:"AUDIT_PAGE_MAX" envDefault:"100"`

	// CollationLocale is the BCP 47 tag used when sorting participant names.
	CollationLocale string `env:"COLLATION_LOCALE" envDefault:"ru"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
