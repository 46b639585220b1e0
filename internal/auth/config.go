package auth

import (
	"errors"
	"fmt"
	"time"
)

// CookieName is the session cookie set on login.
const CookieName = "portal_session"

// Config controls session lifetime and cookie signing.
type Config struct {
	// Secret signs session cookies, at least 32 bytes.
	Secret []byte

	// TTL applies to ordinary logins, RememberTTL when "remember me" is set.
	TTL         time.Duration
	RememberTTL time.Duration

	// Secure marks the cookie Secure; enable it behind TLS.
	Secure bool
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if len(c.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes, got %d", len(c.Secret))
	}

	if c.TTL <= 0 {
		return errors.New("session TTL must be greater than 0")
	}

	if c.RememberTTL < c.TTL {
		return errors.New("remember TTL must not be shorter than session TTL")
	}

	return nil
}
