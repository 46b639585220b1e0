package models

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// User is a registered student as persisted in users.json.
type User struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"` // always stored lower-cased
	Phone    string    `json:"phone"`

	// PasswordHash is a bcrypt hash; the raw password is never stored.
	PasswordHash string `json:"passwordHash"`

	// EnrolledCourseIDs holds course codes in the order they were enrolled.
	EnrolledCourseIDs []string `json:"enrolledCourseIds"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsEnrolled reports whether the user is already enrolled in the course.
func (u *User) IsEnrolled(code string) bool {
	return slices.Contains(u.EnrolledCourseIDs, code)
}

// Clone returns a deep copy so callers can't mutate shared slices.
func (u *User) Clone() *User {
	clone := *u
	clone.EnrolledCourseIDs = slices.Clone(u.EnrolledCourseIDs)
	if clone.EnrolledCourseIDs == nil {
		clone.EnrolledCourseIDs = []string{}
	}
	return &clone
}

// UnmarshalJSON also reads the legacy registeredCourses list, which older
// users.json files used for enrollments. Codes from both lists are merged,
// enrolledCourseIds first, without duplicates.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		RegisteredCourses []string `json:"registeredCourses"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*u = User(aux.plain)
	for _, code := range aux.RegisteredCourses {
		if !u.IsEnrolled(code) {
			u.EnrolledCourseIDs = append(u.EnrolledCourseIDs, code)
		}
	}
	return nil
}
