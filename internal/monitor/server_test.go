package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cattleherd/internal/config"
	"cattleherd/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	reg := NewRegistry()
	return NewServer(config.WebConfig{Port: 0}, reg, zaptest.NewLogger(t)), reg
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "version")
}

func TestListHerd(t *testing.T) {
	srv, reg := newTestServer(t)
	id := uuid.New()
	reg.RecordHandshake(id.String(), "10.0.0.7:7140", []byte("key"),
		&types.InitialConnectReport{Hostname: "barn-01", DeviceID: id})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/herd", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Code int     `json:"code"`
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, id.String(), body.Data[0].DeviceID)
	assert.Equal(t, "barn-01", body.Data[0].Initial.Hostname)
}

func TestGetMember(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.RecordUpdate("barn-key", &types.PeriodicUpdateReport{ProcessCount: 5})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/herd/barn-key", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/herd/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
