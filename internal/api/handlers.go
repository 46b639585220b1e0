package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfeidau/studentportal/internal/auth"
	"github.com/wolfeidau/studentportal/internal/models"
	"github.com/wolfeidau/studentportal/internal/portal"
)

type userSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type userProfile struct {
	ID                string   `json:"id"`
	FullName          string   `json:"fullName"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	EnrolledCourseIDs []string `json:"enrolledCourseIds"`
	RegisteredCourses []string `json:"registeredCourses"`
}

type authResponse struct {
	Success bool        `json:"success"`
	User    userSummary `json:"user"`
}

type meResponse struct {
	User *userProfile `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type enrollResponse struct {
	Success           bool     `json:"success"`
	RegisteredCourses []string `json:"registeredCourses"`
}

type coursesResponse struct {
	Courses []models.Course `json:"courses"`
}

type courseResponse struct {
	Course *models.Course `json:"course"`
}

func summarize(u *models.User) userSummary {
	return userSummary{ID: u.ID.String(), FullName: u.FullName, Email: u.Email}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.portal.Register(r.Context(), portal.Registration{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.gate.Establish(w, r, user, false); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, User: summarize(user)})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.portal.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.gate.Establish(w, r, user, bool(req.Remember)); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, User: summarize(user)})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Destroy(w, r); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: &userProfile{
		ID:                user.ID.String(),
		FullName:          user.FullName,
		Email:             user.Email,
		Phone:             user.Phone,
		EnrolledCourseIDs: user.EnrolledCourseIDs,
		RegisteredCourses: user.EnrolledCourseIDs,
	}})
}

func (h *handler) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.portal.ListCourses(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheableJSON(w, r, coursesResponse{Courses: courses})
}

func (h *handler) course(w http.ResponseWriter, r *http.Request) {
	course, err := h.portal.Course(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheableJSON(w, r, courseResponse{Course: course})
}

func (h *handler) enroll(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, &portal.Error{Kind: portal.ErrAuth, Message: "Not authenticated"})
		return
	}

	var req enrollRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	enrolled, err := h.portal.Enroll(r.Context(), user.ID, req.CourseCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enrollResponse{Success: true, RegisteredCourses: enrolled})
}
