package portal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/studentportal/internal/journal"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/store/jsonfile"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	service *Service
	store   *jsonfile.Store
	journal *journal.Journal
	dir     string
}

func newTestEnv(t *testing.T, seed ...models.Course) *testEnv {
	t.Helper()

	dir := t.TempDir()

	st, err := jsonfile.Open(context.Background(), jsonfile.Config{Dir: dir, Seed: seed})
	require.NoError(t, err)

	jrnl, err := journal.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jrnl.Close() })

	return &testEnv{
		service: NewService(st, jrnl, Config{BcryptCost: bcrypt.MinCost}),
		store:   st,
		journal: jrnl,
		dir:     dir,
	}
}

func (e *testEnv) register(t *testing.T, name, email string) *models.User {
	t.Helper()

	user, err := e.service.Register(context.Background(), Registration{
		FullName: name,
		Email:    email,
		Password: "pw1",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) course(t *testing.T, code string) models.Course {
	t.Helper()

	c, err := e.service.Course(context.Background(), code)
	require.NoError(t, err)
	return *c
}

// faultyStorage fails SaveUsers while failUsers is set and SaveCourses
// while failCourses is set.
type faultyStorage struct {
	Storage
	failUsers   atomic.Bool
	failCourses atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (f *faultyStorage) SaveUsers(ctx context.Context, users []models.User) error {
	if f.failUsers.Load() {
		return errDiskFull
	}
	return f.Storage.SaveUsers(ctx, users)
}

func (f *faultyStorage) SaveCourses(ctx context.Context, courses []models.Course) error {
	if f.failCourses.Load() {
		return errDiskFull
	}
	return f.Storage.SaveCourses(ctx, courses)
}
