package portal

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/studentportal/internal/journal"
	"github.com/wolfeidau/studentportal/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Enroll takes one seat in the course for the user and returns the user's
// updated enrollment list. The seat decrement and the enrollment are recorded
// in the journal before either file is written, so a crash or a failed users
// write after the courses write is completed by the next replay.
func (s *Service) Enroll(ctx context.Context, userID uuid.UUID, courseCode string) ([]string, error) {
	code := strings.TrimSpace(courseCode)
	if code == "" {
		return nil, validationError("Missing course code")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "portal.Enroll",
		trace.WithAttributes(
			attribute.String("course.code", code),
			attribute.String("user.id", userID.String()),
		))
	defer span.End()

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.replayPending(ctx); err != nil {
		span.SetStatus(codes.Error, "journal replay failed")
		return nil, err
	}

	courses, err := s.storage.LoadCourses(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.storage.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	ci := indexOfCourse(courses, code)
	if ci < 0 {
		return nil, s.reject(ctx, "course_not_found", notFoundError("Course not found"))
	}

	ui := indexOfUser(users, userID)
	if ui < 0 {
		return nil, s.reject(ctx, "user_not_found", notFoundError("User not found"))
	}

	course, user := &courses[ci], &users[ui]

	if !course.HasSeats() {
		return nil, s.reject(ctx, "no_seats", conflictError("No seats available"))
	}

	if user.IsEnrolled(code) {
		return nil, s.reject(ctx, "already_enrolled", conflictError("Already registered"))
	}

	course.Availability--
	user.EnrolledCourseIDs = append(user.EnrolledCourseIDs, code)

	seq, err := s.journal.Append(ctx, journal.Entry{
		UserID:       userID,
		CourseCode:   code,
		Availability: course.Availability,
	})
	if err != nil {
		span.SetStatus(codes.Error, "journal append failed")
		return nil, fmt.Errorf("failed to journal enrollment: %w", err)
	}

	// A failed courses write leaves both files untouched, so the intent is
	// abandoned rather than left for replay.
	if err := s.storage.SaveCourses(ctx, courses); err != nil {
		span.SetStatus(codes.Error, "save courses failed")
		if abortErr := s.journal.Abort(ctx, seq); abortErr != nil {
			zerolog.Ctx(ctx).Error().Err(abortErr).Int64("sequence", seq).Msg("Failed to abort enrollment intent")
		}
		return nil, err
	}

	if err := s.storage.SaveUsers(ctx, users); err != nil {
		span.SetStatus(codes.Error, "save users failed")
		return nil, err
	}

	// Both files hold the new state; an uncommitted intent replays as a no-op.
	if err := s.journal.Commit(ctx, seq); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("sequence", seq).Msg("Failed to commit enrollment intent")
	}

	s.metrics.EnrollmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("course.code", code)))
	s.metrics.EnrollmentDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)

	zerolog.Ctx(ctx).Info().
		Str("user_id", userID.String()).
		Str("course_code", code).
		Int("availability", course.Availability).
		Msg("Enrolled user")

	return slices.Clone(user.EnrolledCourseIDs), nil
}

// Recover completes enrollments whose intent was journaled but not committed.
// It returns the number of intents replayed.
func (s *Service) Recover(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replayPending(ctx)
}

func (s *Service) reject(ctx context.Context, reason string, err error) error {
	s.metrics.EnrollmentsRejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("enrollment.rejected", reason))
	return err
}

// replayPending must be called with s.mu held.
func (s *Service) replayPending(ctx context.Context) (int, error) {
	pending := s.journal.Pending()
	if len(pending) == 0 {
		return 0, nil
	}

	courses, err := s.storage.LoadCourses(ctx)
	if err != nil {
		return 0, err
	}

	users, err := s.storage.LoadUsers(ctx)
	if err != nil {
		return 0, err
	}

	for _, entry := range pending {
		applyEntry(ctx, courses, users, entry)
	}

	if err := s.storage.SaveCourses(ctx, courses); err != nil {
		return 0, fmt.Errorf("failed to replay journal: %w", err)
	}

	if err := s.storage.SaveUsers(ctx, users); err != nil {
		return 0, fmt.Errorf("failed to replay journal: %w", err)
	}

	for _, entry := range pending {
		if err := s.journal.Commit(ctx, entry.Sequence); err != nil {
			return 0, fmt.Errorf("failed to commit replayed intent %d: %w", entry.Sequence, err)
		}
	}

	s.metrics.JournalRecoveredTotal.Add(ctx, int64(len(pending)))

	zerolog.Ctx(ctx).Warn().
		Int("intents", len(pending)).
		Msg("Replayed pending enrollment intents")

	return len(pending), nil
}

// applyEntry brings the collections to the state recorded by the intent.
// It is idempotent: a course already at the recorded availability and a user
// already holding the code are left alone.
func applyEntry(ctx context.Context, courses []models.Course, users []models.User, entry journal.Entry) {
	log := zerolog.Ctx(ctx)

	if ci := indexOfCourse(courses, entry.CourseCode); ci < 0 {
		log.Warn().Str("course_code", entry.CourseCode).Msg("Journaled course no longer exists")
	} else {
		switch courses[ci].Availability {
		case entry.Availability:
		case entry.Availability + 1:
			courses[ci].Availability = entry.Availability
		default:
			log.Warn().
				Str("course_code", entry.CourseCode).
				Int("availability", courses[ci].Availability).
				Int("journaled", entry.Availability).
				Msg("Course availability diverged from journal, leaving as is")
		}
	}

	if ui := indexOfUser(users, entry.UserID); ui < 0 {
		log.Warn().Str("user_id", entry.UserID.String()).Msg("Journaled user no longer exists")
	} else if !users[ui].IsEnrolled(entry.CourseCode) {
		users[ui].EnrolledCourseIDs = append(users[ui].EnrolledCourseIDs, entry.CourseCode)
	}
}
