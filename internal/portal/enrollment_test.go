package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/studentportal/internal/journal"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/store/jsonfile"
	"golang.org/x/crypto/bcrypt"
)

func TestEnroll(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "alice@x.io")
	ctx := context.Background()

	enrolled, err := env.service.Enroll(ctx, alice.ID, "CSE101")
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101"}, enrolled)
	assert.Equal(t, 19, env.course(t, "CSE101").Availability)

	enrolled, err = env.service.Enroll(ctx, alice.ID, "MTH201")
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101", "MTH201"}, enrolled)

	user, err := env.service.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101", "MTH201"}, user.EnrolledCourseIDs)

	assert.Equal(t, 2, env.journal.Len())
	assert.Empty(t, env.journal.Pending())
}

func TestEnroll_Rejections(t *testing.T) {
	env := newTestEnv(t,
		models.Course{Code: "FULL1", Title: "Full", Credits: 1, Availability: 0},
		models.Course{Code: "OPEN1", Title: "Open", Credits: 1, Availability: 3},
	)
	alice := env.register(t, "Alice", "alice@x.io")
	ctx := context.Background()

	_, err := env.service.Enroll(ctx, alice.ID, "OPEN1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  uuid.UUID
		code    string
		kind    error
		message string
	}{
		{name: "missing code", userID: alice.ID, code: "  ", kind: ErrValidation, message: "Missing course code"},
		{name: "unknown course", userID: alice.ID, code: "NOPE", kind: ErrNotFound, message: "Course not found"},
		{name: "no seats", userID: alice.ID, code: "FULL1", kind: ErrConflict, message: "No seats available"},
		{name: "already enrolled", userID: alice.ID, code: "OPEN1", kind: ErrConflict, message: "Already registered"},
		{name: "unknown user", userID: uuid.New(), code: "OPEN1", kind: ErrNotFound, message: "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Enroll(ctx, tt.userID, tt.code)
			require.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.message, err.Error())
		})
	}

	// Rejections leave state untouched
	assert.Equal(t, 0, env.course(t, "FULL1").Availability)
	assert.Equal(t, 2, env.course(t, "OPEN1").Availability)

	user, err := env.service.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"OPEN1"}, user.EnrolledCourseIDs)
}

func TestEnroll_ConcurrentNeverOversells(t *testing.T) {
	const seats, students = 5, 20

	env := newTestEnv(t, models.Course{Code: "HOT1", Title: "Popular", Credits: 3, Availability: seats})

	ids := make([]uuid.UUID, students)
	for i := range ids {
		ids[i] = env.register(t, fmt.Sprintf("Student %d", i), fmt.Sprintf("s%d@x.io", i)).ID
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		noSeats   atomic.Int32
	)

	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Enroll(context.Background(), id, "HOT1")
			switch {
			case err == nil:
				succeeded.Add(1)
			case err.Error() == "No seats available":
				noSeats.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, seats, succeeded.Load())
	assert.EqualValues(t, students-seats, noSeats.Load())
	assert.Equal(t, 0, env.course(t, "HOT1").Availability)

	users, err := env.store.LoadUsers(context.Background())
	require.NoError(t, err)

	enrolled := 0
	for _, u := range users {
		if u.IsEnrolled("HOT1") {
			enrolled++
		}
	}
	assert.Equal(t, seats, enrolled)
}

func TestEnroll_DoubleSubmitEnrollsOnce(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "alice@x.io")

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.service.Enroll(context.Background(), alice.ID, "ENG210"); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.Equal(t, 24, env.course(t, "ENG210").Availability)
}

func TestEnroll_FailedUserWriteIsCompletedByReplay(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "alice@x.io")
	ctx := context.Background()

	faulty := &faultyStorage{Storage: env.store}
	svc := NewService(faulty, env.journal, Config{BcryptCost: bcrypt.MinCost})

	faulty.failUsers.Store(true)
	_, err := svc.Enroll(ctx, alice.ID, "CSE101")
	require.ErrorIs(t, err, errDiskFull)

	// Seat taken, user not yet enrolled, intent outstanding
	assert.Equal(t, 19, env.course(t, "CSE101").Availability)
	require.Len(t, env.journal.Pending(), 1)

	// While storage is still failing, later mutations refuse to run
	_, err = svc.Enroll(ctx, alice.ID, "MTH201")
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 15, env.course(t, "MTH201").Availability)

	faulty.failUsers.Store(false)

	n, err := svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, env.journal.Pending())

	user, err := svc.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101"}, user.EnrolledCourseIDs)
	assert.Equal(t, 19, env.course(t, "CSE101").Availability)

	_, err = svc.Enroll(ctx, alice.ID, "CSE101")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEnroll_FailedCourseWriteIsNotReplayed(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "alice@x.io")
	bob := env.register(t, "Bob", "bob@x.io")
	ctx := context.Background()

	faulty := &faultyStorage{Storage: env.store}
	svc := NewService(faulty, env.journal, Config{BcryptCost: bcrypt.MinCost})

	faulty.failCourses.Store(true)
	_, err := svc.Enroll(ctx, alice.ID, "CSE101")
	require.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, 20, env.course(t, "CSE101").Availability)
	assert.Empty(t, env.journal.Pending())

	faulty.failCourses.Store(false)

	// An unrelated enrollment replays nothing on Alice's behalf
	courses, err := svc.Enroll(ctx, bob.ID, "MTH201")
	require.NoError(t, err)
	assert.Equal(t, []string{"MTH201"}, courses)

	user, err := svc.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, user.EnrolledCourseIDs)
	assert.Equal(t, 20, env.course(t, "CSE101").Availability)

	// The abort survives a restart
	n, err := svc.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, env.journal.Close())
	reopened, err := journal.Open(env.dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Empty(t, reopened.Pending())

	// Alice can still take the seat once storage recovers
	courses, err = NewService(env.store, reopened, Config{BcryptCost: bcrypt.MinCost}).Enroll(ctx, alice.ID, "CSE101")
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101"}, courses)
	assert.Equal(t, 19, env.course(t, "CSE101").Availability)
}

func TestEnroll_LegacyRegisteredCoursesCountAsEnrolled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := uuid.New()
	legacy := fmt.Sprintf(`[{"id":%q,"fullName":"Alice","email":"alice@x.io","phone":"","registeredCourses":["CSE101"]}]`, id)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, jsonfile.UsersFile), []byte(legacy), 0o644))

	_, err := env.service.Enroll(ctx, id, "CSE101")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 20, env.course(t, "CSE101").Availability)

	courses, err := env.service.Enroll(ctx, id, "MTH201")
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE101", "MTH201"}, courses)
}

func TestRecover_AfterCrashBeforeAnyWrite(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "Alice", "alice@x.io")
	ctx := context.Background()

	// An intent hit the journal but the process died before the files were written
	_, err := env.journal.Append(ctx, journal.Entry{UserID: alice.ID, CourseCode: "PHY150", Availability: 9})
	require.NoError(t, err)
	require.NoError(t, env.journal.Close())

	reopened, err := journal.Open(env.dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	require.Len(t, reopened.Pending(), 1)

	svc := NewService(env.store, reopened, Config{BcryptCost: bcrypt.MinCost})

	n, err := svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 9, env.course(t, "PHY150").Availability)

	user, err := svc.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"PHY150"}, user.EnrolledCourseIDs)

	// Nothing left to replay
	n, err = svc.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyEntry_Idempotent(t *testing.T) {
	userID := uuid.New()
	courses := []models.Course{{Code: "CSE101", Availability: 19}}
	users := []models.User{{ID: userID, EnrolledCourseIDs: []string{"CSE101"}}}

	entry := journal.Entry{UserID: userID, CourseCode: "CSE101", Availability: 19}
	applyEntry(context.Background(), courses, users, entry)
	applyEntry(context.Background(), courses, users, entry)

	assert.Equal(t, 19, courses[0].Availability)
	assert.Equal(t, []string{"CSE101"}, users[0].EnrolledCourseIDs)
}
