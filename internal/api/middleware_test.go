package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/http/response"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{name: "success response", status: "200", input: map[string]string{"key": "value"}},
		{name: "no content response", status: "204", input: nil},
		{name: "bad request error", status: "400", input: errors.New("invalid input")},
		{name: "api error", status: "404", input: &APIError{Code: "NOT_FOUND", Message: "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			jsonBytes, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &envelope))
			assert.InDelta(t, float64(EnvelopeVersion), envelope["v"], 0)
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"mode": "subject"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(response.Envelope)
	require.True(t, ok, "Expected response.Envelope type")
	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
}

func TestEnvelopeTransformer_ErrorResponse(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "503", errors.New("no media root"))
	require.NoError(t, err)

	envelope, ok := result.(response.ErrorEnvelope)
	require.True(t, ok, "Expected response.ErrorEnvelope type")
	assert.False(t, envelope.Success)
	assert.Equal(t, "UNAVAILABLE", envelope.Error.Code)
	assert.Equal(t, "no media root", envelope.Error.Message)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "VALIDATION",
		Message: "validation failed",
		Details: map[string]string{"group": "is required"},
	}

	result, err := EnvelopeTransformer(nil, "400", apiErr)
	require.NoError(t, err)

	envelope, ok := result.(response.ErrorEnvelope)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION", envelope.Error.Code)
	assert.Equal(t, map[string]string{"group": "is required"}, envelope.Error.Details)
}

func TestStatusToCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "VALIDATION"},
		{http.StatusUnprocessableEntity, "VALIDATION"},
		{http.StatusNotFound, "NOT_FOUND"},
		{http.StatusTooManyRequests, "RATE_LIMITED"},
		{http.StatusGatewayTimeout, "TIMEOUT"},
		{http.StatusTeapot, "INTERNAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusToCode(tt.status), "status %d", tt.status)
	}
}

func TestNewAPIError_HidesServerCause(t *testing.T) {
	cause := errors.New("encoder exploded")

	err := newAPIError(http.StatusInternalServerError, "unexpected error occurred", cause)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.GetStatus())
	assert.Equal(t, "INTERNAL", apiErr.Code)
	assert.Equal(t, "unexpected error occurred", apiErr.Message)
	assert.Nil(t, apiErr.Details)
	assert.ErrorIs(t, err, cause)
}

func TestNewAPIError_KeepsDomainError(t *testing.T) {
	err := newAPIError(http.StatusInternalServerError, "unexpected error occurred",
		domainerrors.Unavailable("no media root configured"))

	assert.Equal(t, http.StatusServiceUnavailable, err.GetStatus())
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "UNAVAILABLE", apiErr.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/qc/toggle", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "203.0.113.7", clientIP(r))

	// RealIP leaves a bare address when it came from a header.
	r.RemoteAddr = "198.51.100.2"
	assert.Equal(t, "198.51.100.2", clientIP(r))
}
