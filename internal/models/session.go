package models

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a session cookie to a student.
// The cookie only carries a signed reference to SessionID; everything else lives server-side.
type Session struct {
	SessionID uuid.UUID // UUIDv7
	UserID    uuid.UUID // Who is logged in
	Remember  bool      // Issued with the extended "remember me" lifetime

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
