package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemLine is an order item joined with its contributor and menu item
type ItemLine struct {
	ItemID       uuid.UUID       `json:"item_id"`
	UserID       uuid.UUID       `json:"user_id"`
	UserName     string          `json:"user_name"`
	MenuItemID   uuid.UUID       `json:"menu_item_id"`
	MenuItemName string          `json:"menu_item_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Note         *string         `json:"note,omitempty"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// OrderSummary is the list view of an order with its bill recomputed from the ledger
type OrderSummary struct {
	ID               uuid.UUID       `json:"id"`
	RestaurantID     uuid.UUID       `json:"restaurant_id"`
	RestaurantName   string          `json:"restaurant_name"`
	ManagerID        uuid.UUID       `json:"manager_id"`
	ManagerName      string          `json:"manager_name"`
	Status           OrderStatus     `json:"status"`
	OrderDate        time.Time       `json:"order_date"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	ParticipantCount int             `json:"participant_count"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	DeliveryFeeShare decimal.Decimal `json:"delivery_fee_share"`
	ItemsTotal       decimal.Decimal `json:"items_total"`
}

// OrderDetails is a single order with all of its lines
type OrderDetails struct {
	OrderSummary
	Items []ItemLine `json:"items"`
}

// HistoryEntry is one order in a history listing. The per-user fields are set
// only when the history was filtered by user.
type HistoryEntry struct {
	OrderSummary
	Items             []ItemLine       `json:"items"`
	UserSubtotal      *decimal.Decimal `json:"user_subtotal,omitempty"`
	UserDeliveryShare *decimal.Decimal `json:"user_delivery_share,omitempty"`
	UserTotal         *decimal.Decimal `json:"user_total,omitempty"`
	PaymentStatus     *PaymentStatus   `json:"payment_status,omitempty"`
}

// PaymentRosterEntry is one participant's amount owed and payment status
type PaymentRosterEntry struct {
	UserID   uuid.UUID       `json:"user_id"`
	UserName string          `json:"user_name"`
	Phone    string          `json:"phone"`
	Amount   decimal.Decimal `json:"amount"`
	Status   PaymentStatus   `json:"status"`
}

// PaymentRoster lists what every participant of an order owes and whether they paid
type PaymentRoster struct {
	OrderID          uuid.UUID            `json:"order_id"`
	RestaurantName   string               `json:"restaurant_name"`
	Status           OrderStatus          `json:"status"`
	OrderDate        time.Time            `json:"order_date"`
	DeliveryFee      decimal.Decimal      `json:"delivery_fee"`
	DeliveryFeeShare decimal.Decimal      `json:"delivery_fee_share"`
	Payments         []PaymentRosterEntry `json:"payments"`
}

// MyItemsView is the caller's own share of an order
type MyItemsView struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderStatus      OrderStatus     `json:"order_status"`
	Items            []ItemLine      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DeliveryFeeShare decimal.Decimal `json:"delivery_fee_share"`
	Total            decimal.Decimal `json:"total"`
	CanModify        bool            `json:"can_modify"`
}

// ParticipantReceipt is one participant's itemized statement
type ParticipantReceipt struct {
	Number           int             `json:"number"`
	UserID           uuid.UUID       `json:"user_id"`
	UserName         string          `json:"user_name"`
	Phone            string          `json:"phone"`
	Items            []ItemLine      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DeliveryFeeShare decimal.Decimal `json:"delivery_fee_share"`
	Total            decimal.Decimal `json:"total"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
}

// Receipt is the itemized statement of a closed order
type Receipt struct {
	OrderID            uuid.UUID            `json:"order_id"`
	RestaurantID       uuid.UUID            `json:"restaurant_id"`
	RestaurantName     string               `json:"restaurant_name"`
	ManagerID          uuid.UUID            `json:"manager_id"`
	ManagerName        string               `json:"manager_name"`
	OrderDate          time.Time            `json:"order_date"`
	ClosedAt           *time.Time           `json:"closed_at,omitempty"`
	DeliveryFee        decimal.Decimal      `json:"delivery_fee"`
	ParticipantCount   int                  `json:"participant_count"`
	DeliveryFeePerUser decimal.Decimal      `json:"delivery_fee_per_user"`
	Participants       []ParticipantReceipt `json:"participants"`
	ItemsTotal         decimal.Decimal      `json:"items_total"`
	GrandTotal         decimal.Decimal      `json:"grand_total"`
}

// Participant returns the receipt section for the given user
func (r *Receipt) Participant(userID uuid.UUID) (*ParticipantReceipt, bool) {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i], true
		}
	}
	return nil, false
}
