package auth

import (
	"context"
	"net/http"

	"group-order/internal/logger"
	"group-order/internal/web"
)

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Phone    string  `json:"phone" validate:"required,max=20"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=6"`
}

// Handler handles HTTP requests for authentication
type Handler struct {
	service   *Service
	registrar Registrar
	logger    *logger.Logger
}

// NewHandler creates the auth handler. Registration is disabled when registrar is nil.
func NewHandler(service *Service, registrar Registrar, log *logger.Logger) *Handler {
	return &Handler{
		service:   service,
		registrar: registrar,
		logger:    log,
	}
}

// RegisterRoutes registers the public auth routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	if h.registrar != nil {
		mux.HandleFunc("POST /api/auth/register", h.Register)
	}
}

// Login handles POST /api/auth/login requests
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	var req loginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "login_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	token, err := h.service.Login(ctx, req.Phone, req.Password)
	if err != nil {
		web.WriteError(w, h.logger, "login_failed", err, requestID)
		return
	}

	h.logger.Info("user_logged_in", "User logged in", requestID, map[string]any{
		"user_id": token.User.ID,
		"role":    token.User.Role,
	})
	h.respond(w, http.StatusOK, token, requestID)
}

// Register handles POST /api/auth/register requests. New accounts are end users
// and are signed in straight away.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	var req registerRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "register_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	user, err := h.registrar.Register(ctx, Registration{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		web.WriteError(w, h.logger, "register_failed", err, requestID)
		return
	}

	token, err := h.service.TokenFor(user)
	if err != nil {
		web.WriteError(w, h.logger, "register_failed", err, requestID)
		return
	}

	h.logger.Info("user_registered", "User registered", requestID, map[string]any{
		"user_id": user.ID,
	})
	h.respond(w, http.StatusCreated, token, requestID)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, requestID string) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}
