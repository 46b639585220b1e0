package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfeidau/studentportal/internal/models"
)

type CoursesCmd struct {
	Query string `help:"Filter by title, code or instructor" short:"q" default:""`
}

func (c *CoursesCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	courses, err := s.client.Courses(ctx, c.Query)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}

	if len(courses) == 0 {
		fmt.Println("No courses found.")
		return nil
	}

	printCourses(courses)
	return nil
}

type CourseCmd struct {
	Code string `arg:"" help:"Course code, e.g. CSE101"`
}

func (c *CourseCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	course, err := s.client.Course(ctx, c.Code)
	if err != nil {
		return fmt.Errorf("failed to get course: %w", err)
	}

	fmt.Printf("Code:       %s\n", course.Code)
	fmt.Printf("Title:      %s\n", course.Title)
	fmt.Printf("Instructor: %s\n", course.Instructor)
	fmt.Printf("Schedule:   %s\n", course.Schedule)
	fmt.Printf("Credits:    %d\n", course.Credits)
	fmt.Printf("Seats left: %d\n", course.Availability)

	return nil
}

type EnrollCmd struct {
	Code string `arg:"" help:"Course code to enroll in"`
}

func (e *EnrollCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals)
	if err != nil {
		return err
	}

	if s.client.Session() == "" {
		return errors.New("not logged in, run: portalctl login")
	}

	enrolled, err := s.client.Enroll(ctx, e.Code)
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled in %s. Your courses: %s\n", e.Code, strings.Join(enrolled, ", "))
	return nil
}

func printCourses(courses []models.Course) {
	fmt.Printf("%-8s %-30s %-18s %-24s %-7s %-5s\n",
		"Code", "Title", "Instructor", "Schedule", "Credits", "Seats")
	fmt.Println(strings.Repeat("─", 97))

	for _, c := range courses {
		fmt.Printf("%-8s %-30s %-18s %-24s %-7d %-5d\n",
			c.Code, truncate(c.Title, 30), truncate(c.Instructor, 18), truncate(c.Schedule, 24), c.Credits, c.Availability)
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
