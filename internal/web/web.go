// Package web holds the HTTP plumbing shared by the service handlers:
// request logging, JSON encoding and decoding, and the mapping of typed
// errors to status codes.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"group-order/internal/apperror"
	"group-order/internal/logger"
)

// RequestTimeout bounds the work done for one request
const RequestTimeout = 30 * time.Second

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// StatusFor maps an error to its HTTP status code
func StatusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes an error response in JSON format
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	writeErrorResponse(w, statusCode, message, "", requestID)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message, field, requestID string) {
	errorResponse := map[string]any{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}
	if field != "" {
		errorResponse["field"] = field
	}
	_ = WriteJSON(w, statusCode, errorResponse)
}

// WriteError logs err and writes it with the status its kind maps to.
// Unexpected errors are reported without their details.
func WriteError(w http.ResponseWriter, log *logger.Logger, action string, err error, requestID string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(action, "Request failed", requestID, err, nil)
		WriteErrorResponse(w, status, http.StatusText(status), requestID)
		return
	}

	log.Debug(action, "Request rejected", requestID, map[string]any{
		"status_code": status,
		"reason":      err.Error(),
	})

	var appErr *apperror.Error
	field := ""
	if errors.As(err, &appErr) {
		field = appErr.Field
	}
	writeErrorResponse(w, status, err.Error(), field, requestID)
}

// DecodeJSON decodes the request body into dst and validates it
func DecodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperror.Validation("content_type", "must be application/json")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperror.Validation("body", "invalid JSON format: %v", err)
	}
	return Validate(dst)
}

// Validate checks the struct's validate tags
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return apperror.Validation("body", "%v", err)
	}

	fe := fieldErrors[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperror.Validation(field, "is required")
	case "gt":
		return apperror.Validation(field, "must be greater than %s", fe.Param())
	case "gte", "min":
		return apperror.Validation(field, "must be at least %s", fe.Param())
	case "max", "lte":
		return apperror.Validation(field, "must be at most %s", fe.Param())
	case "oneof":
		return apperror.Validation(field, "must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return apperror.Validation(field, "is invalid")
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// PathUUID parses the named path value as a UUID
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name, "must be a valid UUID")
	}
	return id, nil
}

// QueryUUID parses an optional query parameter as a UUID
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation(name, "must be a valid UUID")
	}
	return &id, nil
}

// QueryBool parses an optional boolean query parameter
func QueryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.Validation(name, "must be true or false")
	}
	return v, nil
}

// WithLogging adds request logging middleware
func WithLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}

		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
		w.Header().Set("X-Request-ID", requestID)

		log.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		log.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
