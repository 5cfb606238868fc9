package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

func TestRespondErrorCarriesKind(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.NotFound("purchase order", "po-1"), http.StatusNotFound},
		{shared.ErrInvalidTransition, http.StatusConflict},
		{shared.ErrConflict, http.StatusConflict},
		{shared.ErrNoAccountConfigured, http.StatusUnprocessableEntity},
		{shared.ErrUnlinkedItem, http.StatusUnprocessableEntity},
		{shared.ErrNegativeStock, http.StatusUnprocessableEntity},
		{shared.ErrValidation, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, string(shared.KindOf(tc.err)), body.Kind)
		require.Equal(t, tc.err.Error(), body.Detail)
	}
}

func TestRespondErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

type sampleRequest struct {
	Name     string `json:"name" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","quantity":0}`))
	var payload sampleRequest
	err := DecodeAndValidate(req, &payload)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "name failed required")
	require.Contains(t, err.Error(), "quantity failed gt")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"cement","quantity":3}`))
	require.NoError(t, DecodeAndValidate(req, &payload))
	require.Equal(t, "cement", payload.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	require.ErrorIs(t, DecodeJSON(req, &payload), shared.ErrValidation)
}
