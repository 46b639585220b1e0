package api

import (
	"context"
	"fmt"
	"net/http"

	"filippo.io/csrf"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/studentportal/internal/auth"
	httpmiddleware "github.com/wolfeidau/studentportal/internal/http"
	"github.com/wolfeidau/studentportal/internal/logger"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/portal"
)

// Portal is the domain service behind the API.
type Portal interface {
	Register(ctx context.Context, reg portal.Registration) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	ListCourses(ctx context.Context, query string) ([]models.Course, error)
	Course(ctx context.Context, code string) (*models.Course, error)
	Enroll(ctx context.Context, userID uuid.UUID, courseCode string) ([]string, error)
}

// Config wires the API handler.
type Config struct {
	Portal Portal
	Gate   *auth.Gate
	Logger zerolog.Logger

	// CORSOrigins are allowed to call the API with credentials and are
	// trusted by the cross-origin write protection.
	CORSOrigins []string

	// TrustProxy takes the client IP from X-Forwarded-For and X-Real-IP.
	TrustProxy bool
}

type handler struct {
	portal Portal
	gate   *auth.Gate
}

// NewHandler builds the complete HTTP handler for the portal.
func NewHandler(cfg Config) (http.Handler, error) {
	h := &handler{portal: cfg.Portal, gate: cfg.Gate}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpmiddleware.ClientIPMiddleware(cfg.TrustProxy))
	r.Use(logger.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.With(cfg.Gate.Optional).Get("/me", h.me)

		r.Get("/courses", h.listCourses)
		r.Get("/courses/{code}", h.course)
		r.With(cfg.Gate.RequireAuth).Post("/courses/register", h.enroll)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &portal.Error{Kind: portal.ErrNotFound, Message: "Not found"})
	})

	protection := csrf.New()
	for _, origin := range cfg.CORSOrigins {
		if origin == "*" {
			continue
		}
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
	}

	return gzhttp.GzipHandler(withCORS(cfg.CORSOrigins, protection.Handler(r))), nil
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true, // session cookie
	})
	return middleware.Handler(h)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
