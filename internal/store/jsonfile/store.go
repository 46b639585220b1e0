package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/studentportal/internal/models"
)

const (
	UsersFile   = "users.json"
	CoursesFile = "courses.json"
)

// ErrStorageUnreadable marks a collection file that exists but cannot be read or parsed.
var ErrStorageUnreadable = errors.New("storage unreadable")

// Config configures the JSON file store.
type Config struct {
	// Dir holds users.json and courses.json. Created if missing.
	Dir string

	// Seed is written to courses.json on first start. Nil means DefaultCatalog.
	Seed []models.Course
}

// Store persists the user and course collections as whole JSON files.
// Every save replaces the file atomically; loads always read from disk.
type Store struct {
	dir string
}

// Open creates the data directory and seeds missing files, then reads both
// collections once so that unreadable storage fails startup instead of
// looking like an empty portal.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{dir: cfg.Dir}

	seed := cfg.Seed
	if seed == nil {
		seed = DefaultCatalog()
	}

	if err := s.ensure(ctx, UsersFile, []models.User{}); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, CoursesFile, seed); err != nil {
		return nil, err
	}

	users, err := s.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.LoadCourses(ctx)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("data_dir", cfg.Dir).
		Int("users", len(users)).
		Int("courses", len(courses)).
		Msg("Opened portal storage")

	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// LoadUsers returns all users in file order.
func (s *Store) LoadUsers(ctx context.Context) ([]models.User, error) {
	users, err := readCollection[models.User](s.path(UsersFile))
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].EnrolledCourseIDs == nil {
			users[i].EnrolledCourseIDs = []string{}
		}
	}

	return users, nil
}

// SaveUsers replaces the users collection.
func (s *Store) SaveUsers(ctx context.Context, users []models.User) error {
	if err := writeCollection(s.path(UsersFile), users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}
	return nil
}

// LoadCourses returns the catalog in file order.
func (s *Store) LoadCourses(ctx context.Context) ([]models.Course, error) {
	return readCollection[models.Course](s.path(CoursesFile))
}

// SaveCourses replaces the courses collection.
func (s *Store) SaveCourses(ctx context.Context, courses []models.Course) error {
	if err := writeCollection(s.path(CoursesFile), courses); err != nil {
		return fmt.Errorf("failed to save courses: %w", err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// ensure writes the initial collection if the file doesn't exist yet.
func (s *Store) ensure(ctx context.Context, name string, initial any) error {
	path := s.path(name)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: stat %s: %w", ErrStorageUnreadable, name, err)
	}

	if err := writeCollection(path, initial); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	zerolog.Ctx(ctx).Info().Str("file", path).Msg("Created collection file")
	return nil
}

func readCollection[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorageUnreadable, filepath.Base(path), err)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrStorageUnreadable, filepath.Base(path), err)
	}

	if records == nil {
		records = []T{}
	}

	return records, nil
}

// writeCollection writes the file atomically: temp file, fsync, rename.
func writeCollection(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	tempPath := path + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
