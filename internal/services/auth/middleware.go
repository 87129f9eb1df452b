package auth

import (
	"context"
	"net/http"
	"strings"

	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/web"
)

type callerKey struct{}

// WithCaller stores the authenticated caller in ctx
func WithCaller(ctx context.Context, c models.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the authenticated caller stored in ctx
func CallerFrom(ctx context.Context) (models.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(models.Caller)
	return c, ok
}

// RequireCaller returns the caller of r, writing a 401 response when there is none
func RequireCaller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		web.WriteErrorResponse(w, http.StatusUnauthorized, "unauthorized", logger.RequestID(r.Context()))
	}
	return caller, ok
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context
func (s *Service) Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := logger.RequestID(r.Context())

			tokenString, ok := bearerToken(r)
			if !ok {
				web.WriteErrorResponse(w, http.StatusUnauthorized, "missing bearer token", requestID)
				return
			}

			caller, err := s.Parse(tokenString)
			if err != nil {
				log.Debug("auth_failed", "Rejected access token", requestID, map[string]any{
					"path":   r.URL.Path,
					"reason": err.Error(),
				})
				web.WriteErrorResponse(w, http.StatusUnauthorized, err.Error(), requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRoles admits only callers with one of the given roles. It must run after Middleware.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := logger.RequestID(r.Context())

			caller, ok := CallerFrom(r.Context())
			if !ok {
				web.WriteErrorResponse(w, http.StatusUnauthorized, "unauthorized", requestID)
				return
			}
			if !allowed[caller.Role] {
				web.WriteErrorResponse(w, http.StatusForbidden, "insufficient role", requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
