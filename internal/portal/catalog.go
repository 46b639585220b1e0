package portal

import (
	"context"

	"github.com/wolfeidau/studentportal/internal/models"
)

// ListCourses returns the catalog in storage order. A non-empty query keeps
// only courses whose title, code or instructor contains it, ignoring case.
func (s *Service) ListCourses(ctx context.Context, query string) ([]models.Course, error) {
	courses, err := s.storage.LoadCourses(ctx)
	if err != nil {
		return nil, err
	}

	if query == "" {
		return courses, nil
	}

	matched := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		if c.Matches(query) {
			matched = append(matched, c)
		}
	}

	return matched, nil
}

// Course returns the course with the exact code.
func (s *Service) Course(ctx context.Context, code string) (*models.Course, error) {
	courses, err := s.storage.LoadCourses(ctx)
	if err != nil {
		return nil, err
	}

	if i := indexOfCourse(courses, code); i >= 0 {
		course := courses[i]
		return &course, nil
	}

	return nil, notFoundError("Course not found")
}

func indexOfCourse(courses []models.Course, code string) int {
	for i := range courses {
		if courses[i].Code == code {
			return i
		}
	}
	return -1
}
