package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/studentportal/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionStore persists server-side sessions.
// Implementations must make a created session visible to Get before Create returns.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// Get returns the session, ErrSessionNotFound if unknown or ErrSessionExpired once past ExpiresAt.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// UpdateLastUsed bumps the last_used_at timestamp.
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error

	// Delete removes a session (logout).
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteExpired removes all expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}
