package order

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/services/auth"
	"group-order/internal/web"
)

type startOrderRequest struct {
	RestaurantID string `json:"restaurant_id" validate:"required,uuid"`
}

type addItemRequest struct {
	OrderID    string  `json:"order_id" validate:"required,uuid"`
	MenuItemID string  `json:"menu_item_id" validate:"required,uuid"`
	Quantity   int     `json:"quantity"`
	Note       *string `json:"note"`
}

type updateItemRequest struct {
	Quantity int     `json:"quantity"`
	Note     *string `json:"note"`
}

type paymentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the order routes. Every route except /health runs behind authn.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	authed := func(fn http.HandlerFunc) http.Handler {
		return authn(fn)
	}
	staff := func(fn http.HandlerFunc) http.Handler {
		return authn(auth.RequireRoles(models.RoleManager, models.RoleAdmin)(fn))
	}

	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.Handle("POST /api/orders/start", staff(h.StartOrder))
	mux.Handle("POST /api/orders/{id}/close", staff(h.CloseOrder))
	mux.Handle("POST /api/orders/items", authed(h.AddItem))
	mux.Handle("PUT /api/orders/items/{id}", authed(h.UpdateItem))
	mux.Handle("DELETE /api/orders/items/{id}", authed(h.DeleteItem))
	mux.Handle("PUT /api/orders/{orderId}/users/{userId}/payment-status", staff(h.UpdatePaymentStatus))

	mux.Handle("GET /api/orders/active", authed(h.ActiveOrders))
	mux.Handle("GET /api/orders/history", authed(h.History))
	mux.Handle("GET /api/orders/my-history", authed(h.MyHistory))
	mux.Handle("GET /api/orders/{id}", authed(h.GetOrder))
	mux.Handle("GET /api/orders/{id}/items", authed(h.ListOrderItems))
	mux.Handle("GET /api/orders/{id}/my-items", authed(h.MyItems))
	mux.Handle("GET /api/orders/{id}/payment-statuses", authed(h.PaymentRoster))
	mux.Handle("GET /api/orders/{id}/receipt", authed(h.Receipt))
}

// StartOrder handles POST /api/orders/start requests
func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req startOrderRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "order_start_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	order, err := h.service.StartOrder(ctx, caller, uuid.MustParse(req.RestaurantID))
	if err != nil {
		web.WriteError(w, h.logger, "order_start_failed", err, requestID)
		return
	}

	h.logger.Info("order_started", "Order started", requestID, map[string]any{
		"order_id":      order.ID,
		"restaurant_id": order.RestaurantID,
		"manager_id":    order.ManagerID,
	})
	h.respond(w, http.StatusCreated, order, requestID)
}

// CloseOrder handles POST /api/orders/{id}/close requests
func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	orderID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "order_close_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	order, err := h.service.CloseOrder(ctx, caller, orderID)
	if err != nil {
		web.WriteError(w, h.logger, "order_close_failed", err, requestID)
		return
	}

	h.logger.Info("order_closed", "Order closed", requestID, map[string]any{
		"order_id":  order.ID,
		"closed_by": caller.ID,
	})
	h.respond(w, http.StatusOK, order, requestID)
}

// AddItem handles POST /api/orders/items requests
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "order_item_add_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	item, err := h.service.AddItem(ctx, caller, AddItemInput{
		OrderID:    uuid.MustParse(req.OrderID),
		MenuItemID: uuid.MustParse(req.MenuItemID),
		Quantity:   req.Quantity,
		Note:       req.Note,
	})
	if err != nil {
		web.WriteError(w, h.logger, "order_item_add_failed", err, requestID)
		return
	}

	h.logger.Debug("order_item_added", "Order item added", requestID, map[string]any{
		"order_id": item.OrderID,
		"item_id":  item.ID,
		"user_id":  item.UserID,
	})
	h.respond(w, http.StatusCreated, item, requestID)
}

// UpdateItem handles PUT /api/orders/items/{id} requests
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "order_item_update_failed", err, requestID)
		return
	}

	var req updateItemRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "order_item_update_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	item, err := h.service.UpdateItem(ctx, caller, itemID, UpdateItemInput{Quantity: req.Quantity, Note: req.Note})
	if err != nil {
		web.WriteError(w, h.logger, "order_item_update_failed", err, requestID)
		return
	}
	h.respond(w, http.StatusOK, item, requestID)
}

// DeleteItem handles DELETE /api/orders/items/{id} requests
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	itemID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, "order_item_delete_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	if err := h.service.DeleteItem(ctx, caller, itemID); err != nil {
		web.WriteError(w, h.logger, "order_item_delete_failed", err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePaymentStatus handles PUT /api/orders/{orderId}/users/{userId}/payment-status requests
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}
	orderID, err := web.PathUUID(r, "orderId")
	if err != nil {
		web.WriteError(w, h.logger, "payment_status_update_failed", err, requestID)
		return
	}
	userID, err := web.PathUUID(r, "userId")
	if err != nil {
		web.WriteError(w, h.logger, "payment_status_update_failed", err, requestID)
		return
	}

	var req paymentStatusRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, "payment_status_update_failed", err, requestID)
		return
	}
	status, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		web.WriteError(w, h.logger, "payment_status_update_failed", err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	if err := h.service.UpdatePaymentStatus(ctx, caller, orderID, userID, status); err != nil {
		web.WriteError(w, h.logger, "payment_status_update_failed", err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActiveOrders handles GET /api/orders/active requests
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	h.read(w, r, "active_orders_failed", func(ctx context.Context, _ models.Caller) (any, error) {
		return h.service.ActiveOrders(ctx)
	})
}

// History handles GET /api/orders/history requests
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	q, err := historyQuery(r)
	if err != nil {
		web.WriteError(w, h.logger, "order_history_failed", err, requestID)
		return
	}
	h.read(w, r, "order_history_failed", func(ctx context.Context, caller models.Caller) (any, error) {
		return h.service.History(ctx, caller, q)
	})
}

// MyHistory handles GET /api/orders/my-history requests
func (h *Handler) MyHistory(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestID(r.Context())

	restaurantID, err := web.QueryUUID(r, "restaurantId")
	if err != nil {
		web.WriteError(w, h.logger, "order_history_failed", err, requestID)
		return
	}
	h.read(w, r, "order_history_failed", func(ctx context.Context, caller models.Caller) (any, error) {
		return h.service.MyHistory(ctx, caller, restaurantID)
	})
}

// GetOrder handles GET /api/orders/{id} requests
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.readOrder(w, r, "order_get_failed", func(ctx context.Context, _ models.Caller, id uuid.UUID) (any, error) {
		return h.service.GetOrder(ctx, id)
	})
}

// ListOrderItems handles GET /api/orders/{id}/items requests
func (h *Handler) ListOrderItems(w http.ResponseWriter, r *http.Request) {
	h.readOrder(w, r, "order_items_failed", func(ctx context.Context, _ models.Caller, id uuid.UUID) (any, error) {
		return h.service.ListOrderItems(ctx, id)
	})
}

// MyItems handles GET /api/orders/{id}/my-items requests
func (h *Handler) MyItems(w http.ResponseWriter, r *http.Request) {
	h.readOrder(w, r, "my_items_failed", func(ctx context.Context, caller models.Caller, id uuid.UUID) (any, error) {
		return h.service.MyItems(ctx, caller, id)
	})
}

// PaymentRoster handles GET /api/orders/{id}/payment-statuses requests
func (h *Handler) PaymentRoster(w http.ResponseWriter, r *http.Request) {
	h.readOrder(w, r, "payment_roster_failed", func(ctx context.Context, _ models.Caller, id uuid.UUID) (any, error) {
		return h.service.PaymentRoster(ctx, id)
	})
}

// Receipt handles GET /api/orders/{id}/receipt requests
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	h.readOrder(w, r, "receipt_failed", func(ctx context.Context, _ models.Caller, id uuid.UUID) (any, error) {
		return h.service.Receipt(ctx, id)
	})
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.service.HealthCheck(ctx)

	response := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "api-service",
		"healthy":   healthy,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	_ = web.WriteJSON(w, status, response)
}

func historyQuery(r *http.Request) (HistoryQuery, error) {
	var q HistoryQuery
	var err error
	if q.UserID, err = web.QueryUUID(r, "userId"); err != nil {
		return q, err
	}
	if q.RestaurantID, err = web.QueryUUID(r, "restaurantId"); err != nil {
		return q, err
	}
	if q.IncludeOtherParticipants, err = web.QueryBool(r, "includeOtherParticipants"); err != nil {
		return q, err
	}
	if q.ShowAll, err = web.QueryBool(r, "showAll"); err != nil {
		return q, err
	}
	return q, nil
}

// read runs a read-only operation for the caller and writes its result
func (h *Handler) read(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, caller models.Caller) (any, error)) {
	requestID := logger.RequestID(r.Context())
	caller, ok := auth.RequireCaller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), web.RequestTimeout)
	defer cancel()

	result, err := fn(ctx, caller)
	if err != nil {
		web.WriteError(w, h.logger, action, err, requestID)
		return
	}
	h.respond(w, http.StatusOK, result, requestID)
}

// readOrder is read for routes keyed by an order id
func (h *Handler) readOrder(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, caller models.Caller, orderID uuid.UUID) (any, error)) {
	orderID, err := web.PathUUID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, action, err, logger.RequestID(r.Context()))
		return
	}
	h.read(w, r, action, func(ctx context.Context, caller models.Caller) (any, error) {
		return fn(ctx, caller, orderID)
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, requestID string) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}
