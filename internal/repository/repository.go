// Package repository is the persistence port of the order core.
//
// Services read and write plain models through Reader and Writer and never
// issue storage calls of their own. Every mutating operation runs inside
// Store.InTx: the callback's writes commit together when it returns nil and
// are rolled back when it returns an error.
//
// Two implementations exist: repository/postgres for production and
// repository/memory for tests and local development.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"group-order/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// LockMode selects how LockOrder locks the order row
type LockMode int

const (
	// LockShare admits concurrent item mutations but blocks a close
	LockShare LockMode = iota
	// LockUpdate excludes every other locker
	LockUpdate
)

// OrderFilter narrows ListOrders. Nil fields do not filter.
type OrderFilter struct {
	Status       *models.OrderStatus
	RestaurantID *uuid.UUID
	// ParticipantID matches orders where the user has an item or a payment row
	ParticipantID *uuid.UUID
}

// Reader is the read side of the port
type Reader interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]models.Restaurant, error)

	GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	GetMenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.MenuItem, error)
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]models.MenuItem, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
	// ListUsers returns all users, or only those with the given role
	ListUsers(ctx context.Context, role *models.Role) ([]models.User, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// ListOrders returns matching orders, newest order date first
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)

	GetOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	// ListOrderItems returns an order's items in creation order
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)

	// ListPayments returns an order's payment rows in creation order
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	FindPayments(ctx context.Context, orderID, userID uuid.UUID) ([]models.Payment, error)
}

// Writer is the write side of the port; only available inside a transaction
type Writer interface {
	CreateRestaurant(ctx context.Context, r *models.Restaurant) error
	UpdateRestaurant(ctx context.Context, r *models.Restaurant) error
	CreateMenuItem(ctx context.Context, m *models.MenuItem) error
	// UpdateMenuItem rewrites name, description and price
	UpdateMenuItem(ctx context.Context, m *models.MenuItem) error
	CreateUser(ctx context.Context, u *models.User) error
	// UpdateUser rewrites name, email and role; phone and password stay as stored
	UpdateUser(ctx context.Context, u *models.User) error

	CreateOrder(ctx context.Context, o *models.Order) error
	// LockOrder reads the order and holds a row lock until the transaction ends
	LockOrder(ctx context.Context, id uuid.UUID, mode LockMode) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error

	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	UpdateOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error

	// EnsurePayment inserts p unless a row for (p.OrderID, p.UserID) already
	// exists. It reports whether a row was created.
	EnsurePayment(ctx context.Context, p *models.Payment) (bool, error)
	// SetPaymentStatus updates every row for (orderID, userID) and returns how many matched
	SetPaymentStatus(ctx context.Context, orderID, userID uuid.UUID, status models.PaymentStatus, by string, at time.Time) (int64, error)
}

// Tx is the view of the store inside a transaction
type Tx interface {
	Reader
	Writer
}

// Store is the entry point of the port
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Dedupe returns ids without duplicates, keeping first occurrences
func Dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
