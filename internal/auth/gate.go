package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/studentportal/internal/http"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/portal"
	"github.com/wolfeidau/studentportal/internal/store"
	"github.com/wolfeidau/studentportal/internal/telemetry"
)

// ErrUnauthenticated is returned when the request carries no usable session.
var ErrUnauthenticated = errors.New("unauthenticated")

type contextKey string

const userContextKey contextKey = "user"

// UserResolver looks users up by ID.
type UserResolver interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gate resolves the current user from the session cookie and guards routes.
type Gate struct {
	sessions store.SessionStore
	users    UserResolver
	cfg      Config
	now      func() time.Time
}

// NewGate creates a Gate backed by the given session store.
func NewGate(sessions store.SessionStore, users UserResolver, cfg Config) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Gate{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Establish starts a session for the user and sets the session cookie.
// With remember set the session and cookie use the longer TTL.
func (g *Gate) Establish(w http.ResponseWriter, r *http.Request, user *models.User, remember bool) error {
	ctx := r.Context()

	ttl := g.cfg.TTL
	if remember {
		ttl = g.cfg.RememberTTL
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}

	now := g.now().UTC()
	session := &models.Session{
		SessionID:  sessionID,
		UserID:     user.ID,
		Remember:   remember,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
		UserAgent:  r.UserAgent(),
		IPAddress:  httpmiddleware.ClientIPFromContext(ctx),
	}

	if err := g.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	token, err := g.signToken(session)
	if err != nil {
		return err
	}

	http.SetCookie(w, g.cookie(token, int(ttl.Seconds())))

	zerolog.Ctx(ctx).Info().
		Str("user_id", user.ID.String()).
		Str("session_id", sessionID.String()).
		Bool("remember", remember).
		Msg("Session established")

	return nil
}

// Destroy ends the session named by the request cookie, if any, and clears
// the cookie. It succeeds when there is no session.
func (g *Gate) Destroy(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	http.SetCookie(w, g.cookie("", -1))

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}

	sessionID, err := g.parseToken(cookie.Value)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Logout with unusable session cookie")
		return nil
	}

	if err := g.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("session_id", sessionID.String()).Msg("Session destroyed")

	return nil
}

// CurrentUser returns the user bound to the request's session.
// It returns ErrUnauthenticated for a missing, forged, expired or orphaned
// session and any other error for storage failures.
func (g *Gate) CurrentUser(r *http.Request) (*models.User, *models.Session, error) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil, ErrUnauthenticated
	}

	sessionID, err := g.parseToken(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session cookie")
		return nil, nil, ErrUnauthenticated
	}

	session, err := g.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return nil, nil, ErrUnauthenticated
	case errors.Is(err, store.ErrSessionExpired):
		if err := g.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			log.Warn().Err(err).Msg("Failed to delete expired session")
		}
		return nil, nil, ErrUnauthenticated
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, err := g.users.UserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			log.Warn().Str("session_id", sessionID.String()).Msg("Session refers to unknown user")
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	if err := g.sessions.UpdateLastUsed(ctx, sessionID); err != nil {
		log.Debug().Err(err).Msg("Failed to update session last used")
	}

	return user, session, nil
}

// Optional attaches the current user to the request context when there is
// one and never rejects the request.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, err := g.CurrentUser(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to resolve session")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireAuth rejects requests without a valid session with 401
// {"error":"Not authenticated"} before the wrapped handler runs.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, session, err := g.CurrentUser(r)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to resolve session")
			httpmiddleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		zerolog.Ctx(r.Context()).Debug().
			Str("user_id", user.ID.String()).
			Str("session_id", session.SessionID.String()).
			Str("path", r.URL.Path).
			Msg("Session validated")

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RunCleanup deletes expired sessions every interval until ctx is done.
func (g *Gate) RunCleanup(ctx context.Context, interval time.Duration) {
	log := zerolog.Ctx(ctx)
	metrics := telemetry.GetMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.sessions.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to delete expired sessions")
				continue
			}
			if n > 0 {
				metrics.SessionsExpiredTotal.Add(ctx, int64(n))
				log.Debug().Int("count", n).Msg("Deleted expired sessions")
			}
		}
	}
}

// UserFromContext returns the user attached by Optional or RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func (g *Gate) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
