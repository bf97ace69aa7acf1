package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verichain/pkg/domain-errors"
)

type addressRequest struct {
	Address string `json:"address"`
}

func (r *addressRequest) Normalize() {
	r.Address = strings.ToLower(strings.TrimSpace(r.Address))
}

func (r *addressRequest) Validate() error {
	if r.Address == "" {
		return errors.New("address is required")
	}
	return nil
}

type serialRequest struct {
	Serial string `json:"serial"`
}

func (r *serialRequest) Validate() error {
	if r.Serial == "" {
		return dErrors.New(dErrors.CodeBadRequest, "serial is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid JSON returns bad_request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[addressRequest](w, req, discardLogger(), ctx, "rid")

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var errResp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "bad_request", errResp["error"])
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		big := `{"address":"` + strings.Repeat("a", 70*1024) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(big))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[addressRequest](w, req, discardLogger(), ctx, "rid")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"address":"  0xABC  "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[addressRequest](w, req, discardLogger(), ctx, "rid")
		require.True(t, ok)
		assert.Equal(t, "0xabc", result.Address)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"address":" "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[addressRequest](w, req, discardLogger(), ctx, "rid")
		assert.False(t, ok)
		var errResp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "validation_error", errResp["error"])
		assert.Equal(t, "address is required", errResp["error_description"])
	})

	t.Run("domain error code is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[serialRequest](w, req, discardLogger(), ctx, "rid")
		assert.False(t, ok)
		var errResp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "bad_request", errResp["error"])
	})
}
