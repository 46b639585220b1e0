package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/store"
)

var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
	cfg  SessionStoreConfig
}

// NewSessionStore creates a new PostgreSQL-backed session store.
// When cfg.AutoMigrate is set the embedded migrations are applied first.
func NewSessionStore(ctx context.Context, pool *pgxpool.Pool, cfg SessionStoreConfig) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}

	cfg.ApplyDefaults()

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &SessionStore{
		pool: pool,
		cfg:  cfg,
	}, nil
}

func (s *SessionStore) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	query := `
		INSERT INTO sessions (
			session_id, user_id, remember,
			created_at, expires_at, last_used_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8::inet
		)
	`

	// Empty IP address is stored as NULL
	var ipAddress any
	if session.IPAddress != "" {
		ipAddress = session.IPAddress
	}

	_, err := s.pool.Exec(ctx, query,
		session.SessionID,
		session.UserID,
		session.Remember,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastUsedAt,
		session.UserAgent,
		ipAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("user_id", session.UserID.String()).
		Msg("Created session")

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	query := `
		SELECT
			session_id, user_id, remember,
			created_at, expires_at, last_used_at,
			user_agent, COALESCE(host(ip_address), '')
		FROM sessions
		WHERE session_id = $1
	`

	var session models.Session
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.UserID,
		&session.Remember,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.UserAgent,
		&session.IPAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	return &session, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a session.
func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE sessions
		SET last_used_at = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update session last_used_at: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Delete deletes a session by ID (logout).
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Msg("Deleted session")

	return nil
}

// DeleteExpired deletes all expired sessions (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())
	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}
