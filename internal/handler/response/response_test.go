package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation("nom is required"), http.StatusBadRequest},
		{domain.ErrAuthentication("invalid credentials"), http.StatusUnauthorized},
		{domain.ErrAccessDenied("no"), http.StatusForbidden},
		{fmt.Errorf("failed to load: %w", domain.ErrNotFound("x")), http.StatusNotFound},
		{domain.ErrConflict("already processed"), http.StatusConflict},
		{&domain.FeatureDisabledError{Feature: "campaigns"}, http.StatusGone},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFromError(tt.err), tt.err.Error())
	}
}

func TestFromErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/laalas", nil)
	FromError(rec, req, nil, fmt.Errorf("failed to list laalas: %w", fmt.Errorf("timeout")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "internal error", body.Error)
	assert.Contains(t, body.Details, "timeout")

	rec = httptest.NewRecorder()
	FromError(rec, req, nil, domain.ErrConflict("request already processed"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"request already processed"}`, rec.Body.String())
}
