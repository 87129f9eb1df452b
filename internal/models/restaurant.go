package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Restaurant represents a place group orders are placed against
type Restaurant struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Address     string          `json:"address"`
	Phone       string          `json:"phone"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Audit
}

// MenuItem represents a dish offered by exactly one restaurant
type MenuItem struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Audit
}
