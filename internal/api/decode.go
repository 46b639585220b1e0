package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfeidau/studentportal/internal/portal"
)

const maxBodyBytes = 64 << 10

// formDecoder is implemented by request types that can also be posted as
// HTML form fields.
type formDecoder interface {
	decodeForm(form url.Values)
}

// decodeBody reads a JSON or form-encoded body into dst. An empty body
// leaves dst zeroed so missing fields are reported by the service.
func decodeBody(w http.ResponseWriter, r *http.Request, dst formDecoder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return bodyError(err)
		}
		dst.decodeForm(r.PostForm)
		return nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return bodyError(err)
		}
		dst.decodeForm(r.PostForm)
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return bodyError(err)
	}

	return nil
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return &portal.Error{Kind: portal.ErrValidation, Message: "Invalid request body"}
}

// flexBool accepts JSON booleans, numbers and the strings "true", "on",
// "1" and "yes" as sent by HTML checkboxes.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = flexBool(t)
	case float64:
		*b = t != 0
	case string:
		*b = parseFlexBool(t)
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}

	return nil
}

func parseFlexBool(s string) flexBool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (req *registerRequest) decodeForm(form url.Values) {
	req.FullName = form.Get("fullName")
	req.Email = form.Get("email")
	req.Password = form.Get("password")
	req.Phone = form.Get("phone")
}

type loginRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Remember flexBool `json:"remember"`
}

func (req *loginRequest) decodeForm(form url.Values) {
	req.Email = form.Get("email")
	req.Password = form.Get("password")
	req.Remember = parseFlexBool(form.Get("remember"))
}

type enrollRequest struct {
	CourseCode string `json:"courseCode"`
}

func (req *enrollRequest) decodeForm(form url.Values) {
	req.CourseCode = form.Get("courseCode")
}
