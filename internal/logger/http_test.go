package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success", status: http.StatusOK, wantLevel: "info"},
		{name: "client error", status: http.StatusConflict, wantLevel: "info"},
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf)

			var ctxLogger *zerolog.Logger
			handler := middleware.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxLogger = zerolog.Ctx(r.Context())
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/courses/register", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotNil(t, ctxLogger)
			assert.NotEqual(t, zerolog.Disabled, ctxLogger.GetLevel(), "handlers get a usable context logger")

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "POST", line["method"])
			assert.Equal(t, "/api/courses/register", line["path"])
			assert.EqualValues(t, tt.status, line["status"])
			assert.EqualValues(t, 5, line["bytes"])
			assert.NotEmpty(t, line["request_id"])
		})
	}
}

func TestRequestLogger_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestSetup(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}
