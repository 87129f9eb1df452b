package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what a notification message announces
type NotificationType string

const (
	NotificationOrderStarted NotificationType = "order_started"
	NotificationOrderClosed  NotificationType = "order_closed"
	NotificationReceipt      NotificationType = "receipt"
	NotificationSummary      NotificationType = "order_summary"
)

// Recipient is the addressee of a notification
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
	Email  *string   `json:"email,omitempty"`
}

// RecipientFromUser builds a Recipient from a User
func RecipientFromUser(u *User) Recipient {
	return Recipient{
		UserID: u.ID,
		Name:   u.Name,
		Phone:  u.Phone,
		Email:  u.Email,
	}
}

// NotificationMessage is published for every notification addressed to one recipient
type NotificationMessage struct {
	ID             uuid.UUID           `json:"id"`
	Type           NotificationType    `json:"type"`
	OrderID        uuid.UUID           `json:"order_id"`
	RestaurantName string              `json:"restaurant_name"`
	Recipient      Recipient           `json:"recipient"`
	Receipt        *ParticipantReceipt `json:"receipt,omitempty"`
	Summary        *Receipt            `json:"summary,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// NewNotificationMessage creates a NotificationMessage stamped with the current time
func NewNotificationMessage(kind NotificationType, orderID uuid.UUID, restaurantName string, to Recipient) *NotificationMessage {
	return &NotificationMessage{
		ID:             uuid.New(),
		Type:           kind,
		OrderID:        orderID,
		RestaurantName: restaurantName,
		Recipient:      to,
		Timestamp:      time.Now().UTC(),
	}
}
