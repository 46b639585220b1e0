package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/studentportal/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"
)

// Registration is the input to Register. Phone is optional.
type Registration struct {
	FullName string
	Email    string
	Password string
	Phone    string
}

// Register creates a user with no enrollments. Emails are unique
// case-insensitively and stored lower-cased.
func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	fullName := strings.TrimSpace(reg.FullName)
	email := normalizeEmail(reg.Email)
	phone := strings.TrimSpace(reg.Phone)

	if fullName == "" || email == "" || reg.Password == "" {
		return nil, validationError("Missing fields")
	}

	// Hash before taking the lock, bcrypt is deliberately slow
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, validationError("Password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.replayPending(ctx); err != nil {
		return nil, err
	}

	users, err := s.storage.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return nil, conflictError("Email already registered")
		}
	}

	user := models.User{
		ID:                uuid.New(),
		FullName:          fullName,
		Email:             email,
		Phone:             phone,
		PasswordHash:      string(hash),
		EnrolledCourseIDs: []string{},
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.storage.SaveUsers(ctx, append(users, user)); err != nil {
		return nil, err
	}

	s.metrics.RegistrationsTotal.Add(ctx, 1)

	zerolog.Ctx(ctx).Info().
		Str("user_id", user.ID.String()).
		Msg("Registered user")

	return user.Clone(), nil
}

// Authenticate verifies an email and password pair. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Missing email or password")
	}

	users, err := s.storage.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		if !strings.EqualFold(users[i].Email, email) {
			continue
		}

		if err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password)); err != nil {
			break
		}

		s.metrics.LoginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
		return users[i].Clone(), nil
	}

	s.metrics.LoginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failure")))
	zerolog.Ctx(ctx).Debug().Msg("Login rejected")

	return nil, authError("Invalid credentials")
}

// UserByID returns the user or a NotFound error.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	users, err := s.storage.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}

	if i := indexOfUser(users, id); i >= 0 {
		return users[i].Clone(), nil
	}

	return nil, notFoundError("User not found")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func indexOfUser(users []models.User, id uuid.UUID) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
