package api

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/studentportal/internal/http"
	"github.com/wolfeidau/studentportal/internal/portal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	httpmiddleware.WriteJSON(w, status, v)
}

// writeCacheableJSON serves v with a content-derived ETag and answers a
// matching If-None-Match with 304.
func writeCacheableJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash := sha256.Sum256(body)
	etag := `"` + base58.Encode(hash[:]) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func etagMatches(ifNoneMatch, etag string) bool {
	for candidate := range strings.SplitSeq(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// writeError maps domain errors to status codes. Anything unexpected is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)

	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	httpmiddleware.WriteError(w, status, msg)
}

func errorStatus(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "Request body too large"
	}

	var perr *portal.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, "Internal server error"
	}

	switch {
	case errors.Is(perr, portal.ErrValidation):
		return http.StatusBadRequest, perr.Message
	case errors.Is(perr, portal.ErrAuth):
		return http.StatusUnauthorized, perr.Message
	case errors.Is(perr, portal.ErrConflict):
		return http.StatusConflict, perr.Message
	case errors.Is(perr, portal.ErrNotFound):
		return http.StatusNotFound, perr.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
