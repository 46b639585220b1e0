package models

import "strings"

// Course is a catalog entry as persisted in courses.json.
// Availability is the number of open seats and never drops below zero.
type Course struct {
	Code         string `json:"code" yaml:"code"`
	Title        string `json:"title" yaml:"title"`
	Instructor   string `json:"instructor" yaml:"instructor"`
	Schedule     string `json:"schedule" yaml:"schedule"`
	Credits      int    `json:"credits" yaml:"credits"`
	Availability int    `json:"availability" yaml:"availability"`
}

// HasSeats reports whether at least one seat is open.
func (c *Course) HasSeats() bool {
	return c.Availability > 0
}

// Matches reports whether the lower-cased query is a substring of the
// course title, code or instructor, compared case-insensitively.
func (c *Course) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Code), q) ||
		strings.Contains(strings.ToLower(c.Instructor), q)
}
