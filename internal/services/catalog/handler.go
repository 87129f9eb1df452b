package catalog

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"group-order/internal/apperror"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/services/auth"
	"group-order/internal/web"
)

type createRestaurantRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	Phone       string          `json:"phone"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
}

type updateDeliveryFeeRequest struct {
	DeliveryFee *decimal.Decimal `json:"delivery_fee" validate:"required"`
}

type createMenuItemRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

type updateMenuItemRequest = createMenuItemRequest

type updateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type createUserRequest struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Phone    string  `json:"phone" validate:"required"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"required"`
}

// Handler handles HTTP requests for restaurants, menus and users
type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the catalog routes behind the authn middleware
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	admin := func(fn http.HandlerFunc) http.Handler {
		return authn(auth.RequireRoles(models.RoleAdmin)(fn))
	}
	staff := func(fn http.HandlerFunc) http.Handler {
		return authn(auth.RequireRoles(models.RoleManager, models.RoleAdmin)(fn))
	}

	mux.Handle("POST /api/restaurants", admin(h.CreateRestaurant))
	mux.Handle("GET /api/restaurants", authn(http.HandlerFunc(h.ListRestaurants)))
	mux.Handle("GET /api/restaurants/{id}", authn(http.HandlerFunc(h.GetRestaurant)))
	mux.Handle("PUT /api/restaurants/{id}", admin(h.UpdateRestaurant))
	mux.Handle("PUT /api/restaurants/{id}/delivery-fee", admin(h.UpdateDeliveryFee))
	mux.Handle("POST /api/restaurants/{id}/menu-items", staff(h.CreateMenuItem))
	mux.Handle("GET /api/restaurants/{id}/menu-items", authn(http.HandlerFunc(h.ListMenuItems)))
	mux.Handle("GET /api/menu-items/{id}", authn(http.HandlerFunc(h.GetMenuItem)))
	mux.Handle("PUT /api/menu-items/{id}", staff(h.UpdateMenuItem))
	mux.Handle("POST /api/users", admin(h.CreateUser))
	mux.Handle("GET /api/users", admin(h.ListUsers))
	mux.Handle("PUT /api/users/{id}/role", admin(h.UpdateUserRole))
}

// CreateRestaurant handles POST /api/restaurants requests
func (h *Handler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req createRestaurantRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "restaurant_create_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	restaurant, err := h.service.CreateRestaurant(ctx, caller, RestaurantInput{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_create_failed", err, requestID)
		return
	}

	h.logger.Info("restaurant_created", "Restaurant created", requestID, map[string]any{
		"restaurant_id": restaurant.ID,
		"name":          restaurant.Name,
	})
	h.respond(w, http.StatusCreated, restaurant, requestID)
}

// ListRestaurants handles GET /api/restaurants requests
func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	restaurants, err := h.service.ListRestaurants(ctx)
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_list_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, restaurants, requestID)
}

// GetRestaurant handles GET /api/restaurants/{id} requests
func (h *Handler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_get_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	restaurant, err := h.service.GetRestaurant(ctx, id)
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_get_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, restaurant, requestID)
}

// UpdateRestaurant handles PUT /api/restaurants/{id} requests
func (h *Handler) UpdateRestaurant(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_update_failed", err, requestID)
		return
	}

	var req createRestaurantRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "restaurant_update_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	restaurant, err := h.service.UpdateRestaurant(ctx, caller, id, RestaurantInput{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		web.WriteError(w, h.logger, "restaurant_update_failed", err, requestID)
		return
	}

	h.logger.Info("restaurant_updated", "Restaurant updated", requestID, map[string]any{
		"restaurant_id": restaurant.ID,
		"delivery_fee":  restaurant.DeliveryFee.String(),
	})
	h.respond(w, http.StatusOK, restaurant, requestID)
}

// UpdateDeliveryFee handles PUT /api/restaurants/{id}/delivery-fee requests
func (h *Handler) UpdateDeliveryFee(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "delivery_fee_update_failed", err, requestID)
		return
	}

	var req updateDeliveryFeeRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "delivery_fee_update_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	restaurant, err := h.service.UpdateDeliveryFee(ctx, caller, id, *req.DeliveryFee)
	if err != nil {
		web.WriteError(w, h.logger, "delivery_fee_update_failed", err, requestID)
		return
	}

	h.logger.Info("delivery_fee_updated", "Delivery fee updated", requestID, map[string]any{
		"restaurant_id": restaurant.ID,
		"delivery_fee":  restaurant.DeliveryFee.String(),
	})
	h.respond(w, http.StatusOK, restaurant, requestID)
}

// CreateMenuItem handles POST /api/restaurants/{id}/menu-items requests
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	restaurantID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_create_failed", err, requestID)
		return
	}

	var req createMenuItemRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "menu_item_create_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	item, err := h.service.CreateMenuItem(ctx, caller, restaurantID, MenuItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_create_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusCreated, item, requestID)
}

// ListMenuItems handles GET /api/restaurants/{id}/menu-items requests
func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	restaurantID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_list_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	items, err := h.service.ListMenuItems(ctx, restaurantID)
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_list_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, items, requestID)
}

// GetMenuItem handles GET /api/menu-items/{id} requests
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_get_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	item, err := h.service.GetMenuItem(ctx, id)
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_get_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, item, requestID)
}

// UpdateMenuItem handles PUT /api/menu-items/{id} requests
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_update_failed", err, requestID)
		return
	}

	var req updateMenuItemRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "menu_item_update_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	item, err := h.service.UpdateMenuItem(ctx, caller, id, MenuItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		web.WriteError(w, h.logger, "menu_item_update_failed", err, requestID)
		return
	}

	h.logger.Info("menu_item_updated", "Menu item updated", requestID, map[string]any{
		"menu_item_id": item.ID,
		"price":        item.Price.String(),
	})
	h.respond(w, http.StatusOK, item, requestID)
}

// CreateUser handles POST /api/users requests
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "user_create_failed", err, requestID)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		web.WriteError(w, h.logger, "user_create_failed", apperror.Validation("role", "must be one of: EndUser, Manager, Admin"), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	user, err := h.service.CreateUser(ctx, caller, UserInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		web.WriteError(w, h.logger, "user_create_failed", err, requestID)
		return
	}

	h.logger.Info("user_created", "User created", requestID, map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})
	h.respond(w, http.StatusCreated, user, requestID)
}

// ListUsers handles GET /api/users requests
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var role *models.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := models.ParseRole(raw)
		if err != nil {
			web.WriteError(w, h.logger, "user_list_failed", apperror.Validation("role", "must be one of: EndUser, Manager, Admin"), requestID)
			return
		}
		role = &parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	users, err := h.service.ListUsers(ctx, caller, role)
	if err != nil {
		web.WriteError(w, h.logger, "user_list_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, users, requestID)
}

// UpdateUserRole handles PUT /api/users/{id}/role requests
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	id, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "user_role_update_failed", err, requestID)
		return
	}

	var req updateRoleRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "user_role_update_failed", err, requestID)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		web.WriteError(w, h.logger, "user_role_update_failed", apperror.Validation("role", "must be one of: EndUser, Manager, Admin"), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	user, err := h.service.UpdateUserRole(ctx, caller, id, role)
	if err != nil {
		web.WriteError(w, h.logger, "user_role_update_failed", err, requestID)
		return
	}

	h.logger.Info("user_role_updated", "User role updated", requestID, map[string]any{
		"user_id": user.ID,
		"role":    user.Role,
	})
	h.respond(w, http.StatusOK, map[string]any{
		"message": "User role updated to " + string(user.Role),
		"user":    user,
	}, requestID)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, requestID string) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}
