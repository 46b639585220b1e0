package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/studentportal/internal/api"
	"github.com/wolfeidau/studentportal/internal/auth"
	"github.com/wolfeidau/studentportal/internal/journal"
	"github.com/wolfeidau/studentportal/internal/logger"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/portal"
	"github.com/wolfeidau/studentportal/internal/store"
	"github.com/wolfeidau/studentportal/internal/store/jsonfile"
	memorystore "github.com/wolfeidau/studentportal/internal/store/memory"
	postgresstore "github.com/wolfeidau/studentportal/internal/store/postgres"
	"github.com/wolfeidau/studentportal/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	// Server configuration
	Listen     string `help:"HTTP server listen address" default:"0.0.0.0:3000" env:"PORTAL_LISTEN"`
	TrustProxy bool   `help:"take client IPs from X-Forwarded-For and X-Real-IP" default:"false" env:"PORTAL_TRUST_PROXY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"PORTAL_CORS_ORIGINS"`

	// Data configuration
	DataDir     string `help:"directory holding users.json, courses.json and the enrollment journal" default:"data" env:"PORTAL_DATA_DIR"`
	CatalogSeed string `help:"YAML catalog written to courses.json on first start" default:"" env:"PORTAL_CATALOG_SEED" type:"path"`
	BcryptCost  int    `help:"bcrypt cost for password hashes" default:"10" env:"PORTAL_BCRYPT_COST"`

	Tracing bool `help:"enable tracing and metrics export over OTLP" default:"false" env:"PORTAL_TRACING"`

	// Session configuration
	SessionStore  string             `help:"session store type (memory or postgres)" default:"memory" env:"PORTAL_SESSION_STORE" enum:"memory,postgres"`
	Session       SessionFlags       `embed:"" prefix:"session-"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Journal       JournalFlags       `embed:"" prefix:"journal-"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zlog.Logger = log
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("failed to validate session flags: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("failed to validate journal flags: %w", err)
	}

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "studentportal",
			Version:     globals.Version,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	var seed []models.Course
	if c.CatalogSeed != "" {
		var err error
		seed, err = jsonfile.LoadSeed(c.CatalogSeed)
		if err != nil {
			return err
		}
		log.Info().Str("path", c.CatalogSeed).Int("courses", len(seed)).Msg("Loaded catalog seed")
	}

	// Unreadable data files stop startup rather than serving an empty portal
	st, err := jsonfile.Open(ctx, jsonfile.Config{Dir: c.DataDir, Seed: seed})
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}
	log.Info().Str("data_dir", st.Dir()).Msg("Opened portal data")

	jrnl, err := journal.Open(c.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open enrollment journal: %w", err)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close enrollment journal")
		}
	}()

	svc := portal.NewService(st, jrnl, portal.Config{BcryptCost: c.BcryptCost})

	replayed, err := svc.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover enrollments: %w", err)
	}
	if replayed > 0 {
		log.Warn().Int("intents", replayed).Msg("Completed interrupted enrollments")
	}

	c.compactJournal(ctx, jrnl)

	sessionStore, closeStore, err := c.createSessionStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	secret, generated, err := c.Session.secretBytes()
	if err != nil {
		return err
	}
	if generated {
		log.Warn().Msg("No session secret configured, generated one; sessions will not survive a restart")
	}

	gate, err := auth.NewGate(sessionStore, svc, auth.Config{
		Secret:      secret,
		TTL:         c.Session.TTL,
		RememberTTL: c.Session.RememberTTL,
		Secure:      c.Session.SecureCookie,
	})
	if err != nil {
		return fmt.Errorf("failed to create session gate: %w", err)
	}

	go gate.RunCleanup(ctx, c.Session.CleanupInterval)

	handler, err := api.NewHandler(api.Config{
		Portal:      svc,
		Gate:        gate,
		Logger:      log,
		CORSOrigins: c.CORSOrigins,
		TrustProxy:  c.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("failed to create API handler: %w", err)
	}
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "studentportal")
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("data_dir", c.DataDir).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	return nil
}

// compactJournal archives a fully committed journal and prunes old archives.
// Failures are logged; the journal keeps working uncompacted.
func (c *ServeCmd) compactJournal(ctx context.Context, jrnl *journal.Journal) {
	log := zerolog.Ctx(ctx)

	archiveDir := c.Journal.ArchiveDir
	if archiveDir == "" {
		archiveDir = filepath.Join(c.DataDir, "archive")
	}

	log.Debug().Int("intents", jrnl.Len()).Msg("Compacting enrollment journal")

	archived, err := jrnl.Archive(archiveDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive enrollment journal")
		return
	}
	if archived != "" {
		log.Info().Str("archive", archived).Msg("Archived enrollment journal")
	}

	deleted, err := journal.CleanupArchive(archiveDir, c.Journal.ArchiveRetentionDays)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to clean up journal archives")
		return
	}
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Removed expired journal archives")
	}
}

// createSessionStore returns the configured session store and a func that
// releases its resources.
func (c *ServeCmd) createSessionStore(ctx context.Context) (store.SessionStore, func(), error) {
	log := zerolog.Ctx(ctx)

	switch c.SessionStore {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session store pool: %w", err)
		}

		sessions, err := postgresstore.NewSessionStore(ctx, pool, postgresstore.SessionStoreConfig{
			QueryTimeoutSeconds: c.PostgresStore.QueryTimeout,
			AutoMigrate:         c.PostgresStore.AutoMigrate,
		})
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create postgres session store: %w", err)
		}

		log.Info().Bool("auto_migrate", c.PostgresStore.AutoMigrate).Msg("Using PostgreSQL session store")
		return sessions, pool.Close, nil

	default:
		log.Info().Msg("Using in-memory session store")
		return memorystore.NewSessionStore(), func() {}, nil
	}
}
