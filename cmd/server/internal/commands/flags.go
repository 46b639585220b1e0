package commands

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

type SessionFlags struct {
	TTL             time.Duration `help:"session lifetime" default:"4h" env:"PORTAL_SESSION_TTL"`
	RememberTTL     time.Duration `help:"session lifetime when \"remember me\" is set" default:"720h" env:"PORTAL_SESSION_REMEMBER_TTL"`
	Secret          string        `help:"secret for signing session cookies, at least 32 bytes (generated per process when empty)" env:"PORTAL_SESSION_SECRET"`
	SecureCookie    bool          `help:"mark the session cookie Secure (enable behind TLS)" default:"false" env:"PORTAL_SESSION_SECURE_COOKIE"`
	CleanupInterval time.Duration `help:"interval between expired session sweeps" default:"10m" env:"PORTAL_SESSION_CLEANUP_INTERVAL"`
}

func (s *SessionFlags) Validate() error {
	if s.Secret != "" && len(s.Secret) < 32 {
		return errors.New("session secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	if s.TTL <= 0 {
		return errors.New("session TTL must be greater than 0")
	}
	if s.RememberTTL < s.TTL {
		return errors.New("session remember TTL must not be shorter than session TTL")
	}
	if s.CleanupInterval <= 0 {
		return errors.New("session cleanup interval must be greater than 0")
	}
	return nil
}

// secretBytes returns the configured secret, or a random one when unset.
// A generated secret invalidates all sessions on restart.
func (s *SessionFlags) secretBytes() ([]byte, bool, error) {
	if s.Secret != "" {
		return []byte(s.Secret), false, nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, false, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, true, nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
	QueryTimeout    int32 `help:"query timeout in seconds" default:"5"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PORTAL_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("postgres min conns (%d) must not exceed max conns (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

type JournalFlags struct {
	ArchiveDir           string `help:"directory for compressed journal archives (default <data-dir>/archive)" default:"" env:"PORTAL_JOURNAL_ARCHIVE_DIR"`
	ArchiveRetentionDays int    `help:"days to keep journal archives, 0 keeps them forever" default:"30" env:"PORTAL_JOURNAL_ARCHIVE_RETENTION_DAYS"`
}

func (s *JournalFlags) Validate() error {
	if s.ArchiveRetentionDays < 0 {
		return errors.New("journal archive retention days must not be negative")
	}
	return nil
}
