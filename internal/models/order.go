package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"group-order/internal/apperror"
)

// MaxNoteLength is the longest free-text note an order item may carry
const MaxNoteLength = 500

// OrderStatus represents the status of a group order
type OrderStatus string

const (
	OrderOpen   OrderStatus = "Open"
	OrderClosed OrderStatus = "Closed"
)

// PaymentStatus represents whether a participant has settled their share
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// ParsePaymentStatus parses a payment status case-insensitively
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch {
	case strings.EqualFold(s, string(PaymentUnpaid)):
		return PaymentUnpaid, nil
	case strings.EqualFold(s, string(PaymentPaid)):
		return PaymentPaid, nil
	default:
		return "", apperror.Validation("status", "must be one of: Unpaid, Paid")
	}
}

// Order represents a group order opened by a manager against one restaurant
type Order struct {
	ID           uuid.UUID   `json:"id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	ManagerID    uuid.UUID   `json:"manager_id"`
	Status       OrderStatus `json:"status"`
	OrderDate    time.Time   `json:"order_date"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
	Audit
}

func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}

// CanBeClosedBy reports whether the caller may close the order or manage its payments
func (o *Order) CanBeClosedBy(c Caller) bool {
	return c.ID == o.ManagerID || c.IsAdmin()
}

// Close moves the order to its terminal state
func (o *Order) Close(by string, at time.Time) {
	o.Status = OrderClosed
	o.ClosedAt = &at
	o.Touch(by, at)
}

// OrderItem represents one participant's line in a group order
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
	Note       *string   `json:"note,omitempty"`
	Audit
}

// Payment tracks one participant's settlement for an order
type Payment struct {
	ID      uuid.UUID     `json:"id"`
	OrderID uuid.UUID     `json:"order_id"`
	UserID  uuid.UUID     `json:"user_id"`
	Status  PaymentStatus `json:"status"`
	Audit
}

// ValidateItemInput validates the quantity and note of an order item
func ValidateItemInput(quantity int, note *string) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	return validateNote(note)
}

// validateQuantity validates the quantity field
func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return apperror.Validation("quantity", "must be greater than zero")
	}
	return nil
}

// validateNote validates the optional note field
func validateNote(note *string) error {
	if note == nil {
		return nil
	}
	if n := utf8.RuneCountInString(*note); n > MaxNoteLength {
		return apperror.Validation("note", "must not exceed %d characters, got %d", MaxNoteLength, n)
	}
	return nil
}
