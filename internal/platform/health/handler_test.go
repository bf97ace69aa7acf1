package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) (*httptest.ResponseRecorder, ReadinessResponse) {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body ReadinessResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestReadiness(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", up)
		w, body := serve(h, "/health/ready")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, "up", body.Checks["database"])
	})

	t.Run("required check down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", down)
		w, body := serve(h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "down: connection refused", body.Checks["database"])
	})

	t.Run("optional check down stays ready", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", up)
		h.RegisterOptionalCheck("ledger", down)
		w, body := serve(h, "/health/ready")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "degraded: connection refused", body.Checks["ledger"])
	})
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return errors.New("down") })

	w, _ := serve(h, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "test", status.Environment)
	assert.Equal(t, Version, status.Version)
}
