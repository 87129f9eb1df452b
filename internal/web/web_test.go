package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-order/internal/apperror"
	"group-order/internal/logger"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.NotFound("order not found"), http.StatusNotFound},
		{apperror.Forbidden("nope"), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", apperror.Conflict("closed")), http.StatusConflict},
		{apperror.Validation("quantity", "must be positive"), http.StatusBadRequest},
		{apperror.Unauthorized("bad token"), http.StatusUnauthorized},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter("test", "debug", &logs)

	t.Run("expected failures carry their message and field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, log, "item_add_failed", apperror.Validation("quantity", "must be positive"), "req-1")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "quantity: must be positive", body["error"])
		assert.Equal(t, "quantity", body["field"])
		assert.Equal(t, "req-1", body["request_id"])
	})

	t.Run("unexpected failures hide details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, log, "order_close_failed", errors.New("pq: password authentication failed"), "req-2")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), "field")
		assert.Contains(t, logs.String(), "password authentication failed")
	})
}

type sample struct {
	Name     string `json:"name" validate:"required,max=5"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Status   string `json:"status" validate:"omitempty,oneof=Paid Unpaid"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantField   string
	}{
		{"valid", "application/json", `{"name":"abc","quantity":1}`, ""},
		{"wrong content type", "text/plain", `{"name":"abc","quantity":1}`, "content_type"},
		{"malformed", "application/json", `{"name":`, "body"},
		{"unknown field", "application/json", `{"name":"abc","quantity":1,"extra":true}`, "body"},
		{"missing name", "application/json", `{"quantity":1}`, "name"},
		{"name too long", "application/json", `{"name":"abcdef","quantity":1}`, "name"},
		{"zero quantity", "application/json", `{"name":"abc","quantity":0}`, "quantity"},
		{"bad status", "application/json", `{"name":"abc","quantity":1,"status":"Refunded"}`, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			var dst sample
			err := DecodeJSON(req, &dst)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "abc", dst.Name)
				return
			}

			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?userId=not-a-uuid&showAll=true&flag=maybe", nil)

	_, err := QueryUUID(req, "userId")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	id, err := QueryUUID(req, "restaurantId")
	require.NoError(t, err)
	assert.Nil(t, id)

	v, err := QueryBool(req, "showAll")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = QueryBool(req, "flag")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestWithLogging(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter("test", "debug", &logs)

	var seen string
	h := WithLogging(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/orders/active", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, logs.String(), "request_completed")
	assert.Contains(t, logs.String(), `"status_code":418`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}
