package portal

import (
	"context"
	"sync"

	"github.com/wolfeidau/studentportal/internal/journal"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/telemetry"
	"golang.org/x/crypto/bcrypt"
)

const tracerName = "github.com/wolfeidau/studentportal/internal/portal"

// Storage loads and saves whole collections.
type Storage interface {
	LoadUsers(ctx context.Context) ([]models.User, error)
	SaveUsers(ctx context.Context, users []models.User) error
	LoadCourses(ctx context.Context) ([]models.Course, error)
	SaveCourses(ctx context.Context, courses []models.Course) error
}

// Journal records enrollment intents ahead of the collection writes.
type Journal interface {
	Append(ctx context.Context, entry journal.Entry) (int64, error)
	Commit(ctx context.Context, sequence int64) error
	Abort(ctx context.Context, sequence int64) error
	Pending() []journal.Entry
}

// Config tunes the service.
type Config struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service implements registration, login, the catalog and enrollment on top
// of the collection files. All mutations run under a single mutex; reads go
// straight to storage.
type Service struct {
	mu      sync.Mutex
	storage Storage
	journal Journal
	cfg     Config
	metrics *telemetry.Metrics
}

// NewService wires the service to its storage and enrollment journal.
func NewService(storage Storage, jrnl Journal, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		storage: storage,
		journal: jrnl,
		cfg:     cfg,
		metrics: telemetry.GetMetrics(),
	}
}
