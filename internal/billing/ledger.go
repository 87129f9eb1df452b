package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"group-order/internal/models"
)

const unknownName = "(unknown)"

// Source is the read access Load needs. Satisfied by repository.Reader.
type Source interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	GetMenuItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.MenuItem, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// Ledger is a consistent snapshot of one order and everything its bill depends on
type Ledger struct {
	Order      *models.Order
	Restaurant *models.Restaurant
	Items      []models.OrderItem
	Payments   []models.Payment
	MenuItems  map[uuid.UUID]*models.MenuItem
	Users      map[uuid.UUID]*models.User
}

// Load fetches an order's ledger by explicit id lookups. Errors from src are
// returned unchanged so callers can test them against their own sentinels.
func Load(ctx context.Context, src Source, orderID uuid.UUID) (*Ledger, error) {
	order, err := src.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return LoadFor(ctx, src, order)
}

// LoadFor builds the ledger of an order that was already fetched
func LoadFor(ctx context.Context, src Source, order *models.Order) (*Ledger, error) {
	restaurant, err := src.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurant %s: %w", order.RestaurantID, err)
	}

	items, err := src.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	payments, err := src.ListPayments(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	menuIDs := make([]uuid.UUID, 0, len(items))
	userIDs := []uuid.UUID{order.ManagerID}
	for _, it := range items {
		menuIDs = append(menuIDs, it.MenuItemID)
		userIDs = append(userIDs, it.UserID)
	}
	for _, p := range payments {
		userIDs = append(userIDs, p.UserID)
	}

	menuItems, err := src.GetMenuItems(ctx, menuIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}

	users, err := src.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	return &Ledger{
		Order:      order,
		Restaurant: restaurant,
		Items:      items,
		Payments:   payments,
		MenuItems:  menuItems,
		Users:      users,
	}, nil
}

// Split computes the order's bill
func (l *Ledger) Split() Split {
	lines := make([]Line, 0, len(l.Items))
	for _, it := range l.Items {
		lines = append(lines, Line{UserID: it.UserID, UnitPrice: l.price(it.MenuItemID), Quantity: it.Quantity})
	}
	payers := make([]uuid.UUID, 0, len(l.Payments))
	for _, p := range l.Payments {
		payers = append(payers, p.UserID)
	}
	return Compute(l.Restaurant.DeliveryFee, lines, payers)
}

// ItemLines returns the order's lines, optionally restricted to one user
func (l *Ledger) ItemLines(onlyUser *uuid.UUID) []models.ItemLine {
	lines := make([]models.ItemLine, 0, len(l.Items))
	for _, it := range l.Items {
		if onlyUser != nil && it.UserID != *onlyUser {
			continue
		}
		price := l.price(it.MenuItemID)
		lines = append(lines, models.ItemLine{
			ItemID:       it.ID,
			UserID:       it.UserID,
			UserName:     l.UserName(it.UserID),
			MenuItemID:   it.MenuItemID,
			MenuItemName: l.menuItemName(it.MenuItemID),
			UnitPrice:    price,
			Quantity:     it.Quantity,
			Note:         it.Note,
			LineTotal:    price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return lines
}

// PaymentStatus returns the user's payment status. A user with several rows
// counts as Paid only when every row is Paid.
func (l *Ledger) PaymentStatus(userID uuid.UUID) (models.PaymentStatus, bool) {
	status, found := models.PaymentPaid, false
	for _, p := range l.Payments {
		if p.UserID != userID {
			continue
		}
		found = true
		if p.Status != models.PaymentPaid {
			status = models.PaymentUnpaid
		}
	}
	if !found {
		return models.PaymentUnpaid, false
	}
	return status, true
}

// Summary returns the list view of the order
func (l *Ledger) Summary() models.OrderSummary {
	split := l.Split()
	return models.OrderSummary{
		ID:               l.Order.ID,
		RestaurantID:     l.Restaurant.ID,
		RestaurantName:   l.Restaurant.Name,
		ManagerID:        l.Order.ManagerID,
		ManagerName:      l.UserName(l.Order.ManagerID),
		Status:           l.Order.Status,
		OrderDate:        l.Order.OrderDate,
		ClosedAt:         l.Order.ClosedAt,
		ParticipantCount: split.ParticipantCount(),
		DeliveryFee:      split.DeliveryFee,
		DeliveryFeeShare: split.Share,
		ItemsTotal:       split.ItemsTotal(),
	}
}

// Receipt itemizes the order per participant. It does not check the order status.
func (l *Ledger) Receipt() *models.Receipt {
	split := l.Split()

	receipt := &models.Receipt{
		OrderID:            l.Order.ID,
		RestaurantID:       l.Restaurant.ID,
		RestaurantName:     l.Restaurant.Name,
		ManagerID:          l.Order.ManagerID,
		ManagerName:        l.UserName(l.Order.ManagerID),
		OrderDate:          l.Order.OrderDate,
		ClosedAt:           l.Order.ClosedAt,
		DeliveryFee:        split.DeliveryFee,
		ParticipantCount:   split.ParticipantCount(),
		DeliveryFeePerUser: split.Share,
		Participants:       make([]models.ParticipantReceipt, 0, split.ParticipantCount()),
		ItemsTotal:         split.ItemsTotal(),
		GrandTotal:         split.GrandTotal(),
	}

	for i, userID := range split.Participants {
		uid := userID
		status, _ := l.PaymentStatus(uid)
		receipt.Participants = append(receipt.Participants, models.ParticipantReceipt{
			Number:           i + 1,
			UserID:           uid,
			UserName:         l.UserName(uid),
			Phone:            l.userPhone(uid),
			Items:            l.ItemLines(&uid),
			Subtotal:         split.Subtotal(uid),
			DeliveryFeeShare: split.ShareFor(uid),
			Total:            split.Total(uid),
			PaymentStatus:    status,
		})
	}
	return receipt
}

// UserName returns the user's display name
func (l *Ledger) UserName(id uuid.UUID) string {
	if u, ok := l.Users[id]; ok {
		return u.Name
	}
	return unknownName
}

func (l *Ledger) userPhone(id uuid.UUID) string {
	if u, ok := l.Users[id]; ok {
		return u.Phone
	}
	return ""
}

func (l *Ledger) price(menuItemID uuid.UUID) decimal.Decimal {
	if m, ok := l.MenuItems[menuItemID]; ok {
		return m.Price
	}
	return decimal.Zero
}

func (l *Ledger) menuItemName(menuItemID uuid.UUID) string {
	if m, ok := l.MenuItems[menuItemID]; ok {
		return m.Name
	}
	return unknownName
}
