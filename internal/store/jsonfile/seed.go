package jsonfile

import (
	"fmt"
	"os"

	"github.com/wolfeidau/studentportal/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultCatalog returns the four-course catalog written on first start.
func DefaultCatalog() []models.Course {
	return []models.Course{
		{
			Code:         "CSE101",
			Title:        "Intro to Computer Science",
			Instructor:   "Dr. Priya Rao",
			Schedule:     "Mon & Wed 10:00-11:30",
			Credits:      3,
			Availability: 20,
		},
		{
			Code:         "MTH201",
			Title:        "Calculus II",
			Instructor:   "Prof. R. Menon",
			Schedule:     "Tue & Thu 09:00-10:30",
			Credits:      4,
			Availability: 15,
		},
		{
			Code:         "PHY150",
			Title:        "Physics for Engineers",
			Instructor:   "Dr. G. Sharma",
			Schedule:     "Mon & Wed 14:00-15:30",
			Credits:      3,
			Availability: 10,
		},
		{
			Code:         "ENG210",
			Title:        "Technical Communication",
			Instructor:   "Ms. S. Iyer",
			Schedule:     "Fri 10:00-13:00",
			Credits:      2,
			Availability: 25,
		},
	}
}

type seedFile struct {
	Courses []models.Course `yaml:"courses"`
}

// LoadSeed reads a catalog seed from a YAML file of the form:
//
//	courses:
//	  - code: CSE101
//	    title: Intro to Computer Science
//	    instructor: Dr. Priya Rao
//	    schedule: Mon & Wed 10:00-11:30
//	    credits: 3
//	    availability: 20
func LoadSeed(path string) ([]models.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	if err := ValidateCatalog(seed.Courses); err != nil {
		return nil, fmt.Errorf("invalid catalog seed %s: %w", path, err)
	}

	return seed.Courses, nil
}

// ValidateCatalog checks codes are present and unique, credits are positive
// and availability is not negative.
func ValidateCatalog(courses []models.Course) error {
	if len(courses) == 0 {
		return fmt.Errorf("catalog has no courses")
	}

	seen := make(map[string]struct{}, len(courses))
	for i, c := range courses {
		if c.Code == "" {
			return fmt.Errorf("course %d: code is required", i)
		}
		if _, dup := seen[c.Code]; dup {
			return fmt.Errorf("course %s: duplicate code", c.Code)
		}
		seen[c.Code] = struct{}{}

		if c.Title == "" {
			return fmt.Errorf("course %s: title is required", c.Code)
		}
		if c.Credits <= 0 {
			return fmt.Errorf("course %s: credits must be positive", c.Code)
		}
		if c.Availability < 0 {
			return fmt.Errorf("course %s: availability must not be negative", c.Code)
		}
	}

	return nil
}
