package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/studentportal/internal/models"
)

func courseCodes(courses []models.Course) []string {
	codes := make([]string, 0, len(courses))
	for _, c := range courses {
		codes = append(codes, c.Code)
	}
	return codes
}

func TestListCourses(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"CSE101", "MTH201", "PHY150", "ENG210"}},
		{query: "calc", want: []string{"MTH201"}},
		{query: "eng", want: []string{"PHY150", "ENG210"}},
		{query: "RAO", want: []string{"CSE101"}},
		{query: "cse1", want: []string{"CSE101"}},
		{query: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			courses, err := env.service.ListCourses(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, courseCodes(courses))
		})
	}
}

func TestCourse(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.service.Course(context.Background(), "PHY150")
	require.NoError(t, err)
	assert.Equal(t, "Physics for Engineers", c.Title)
	assert.Equal(t, 10, c.Availability)

	_, err = env.service.Course(context.Background(), "phy150")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Course not found", err.Error())
}
