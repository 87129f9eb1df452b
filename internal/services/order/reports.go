package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"group-order/internal/apperror"
	"group-order/internal/billing"
	"group-order/internal/models"
	"group-order/internal/repository"
)

// HistoryQuery filters the order history
type HistoryQuery struct {
	// UserID restricts the history to orders the user took part in. When nil
	// and ShowAll is false the caller is used.
	UserID       *uuid.UUID
	RestaurantID *uuid.UUID
	// IncludeOtherParticipants lists every line of each order instead of only the user's
	IncludeOtherParticipants bool
	ShowAll                  bool
}

// ledger loads the bill of one order, failing with NotFound when the order is absent
func (s *Service) ledger(ctx context.Context, orderID uuid.UUID) (*billing.Ledger, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order %s not found", orderID)
	}
	l, err := billing.LoadFor(ctx, s.store, order)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return l, nil
}

func (s *Service) ledgers(ctx context.Context, filter repository.OrderFilter) ([]*billing.Ledger, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	out := make([]*billing.Ledger, 0, len(orders))
	for i := range orders {
		l, err := billing.LoadFor(ctx, s.store, &orders[i])
		if err != nil {
			return nil, fmt.Errorf("failed to load order %s: %w", orders[i].ID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// ActiveOrders returns every open order, newest first
func (s *Service) ActiveOrders(ctx context.Context) ([]models.OrderSummary, error) {
	open := models.OrderOpen
	ledgers, err := s.ledgers(ctx, repository.OrderFilter{Status: &open})
	if err != nil {
		return nil, err
	}

	out := make([]models.OrderSummary, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, l.Summary())
	}
	return out, nil
}

// History returns past and current orders, newest first
func (s *Service) History(ctx context.Context, caller models.Caller, q HistoryQuery) ([]models.HistoryEntry, error) {
	var user *uuid.UUID
	if !q.ShowAll {
		user = q.UserID
		if user == nil {
			id := caller.ID
			user = &id
		}
	}

	ledgers, err := s.ledgers(ctx, repository.OrderFilter{RestaurantID: q.RestaurantID, ParticipantID: user})
	if err != nil {
		return nil, err
	}

	out := make([]models.HistoryEntry, 0, len(ledgers))
	for _, l := range ledgers {
		entry := models.HistoryEntry{OrderSummary: l.Summary()}

		if user == nil || q.IncludeOtherParticipants {
			entry.Items = l.ItemLines(nil)
		} else {
			entry.Items = l.ItemLines(user)
		}

		if user != nil {
			split := l.Split()
			subtotal := split.Subtotal(*user)
			share := split.ShareFor(*user)
			total := split.Total(*user)
			status, _ := l.PaymentStatus(*user)
			entry.UserSubtotal = &subtotal
			entry.UserDeliveryShare = &share
			entry.UserTotal = &total
			entry.PaymentStatus = &status
		}
		out = append(out, entry)
	}
	return out, nil
}

// MyHistory returns the caller's own orders with only their own lines
func (s *Service) MyHistory(ctx context.Context, caller models.Caller, restaurantID *uuid.UUID) ([]models.HistoryEntry, error) {
	id := caller.ID
	return s.History(ctx, caller, HistoryQuery{UserID: &id, RestaurantID: restaurantID})
}

// GetOrder returns an order with all of its lines
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderDetails, error) {
	l, err := s.ledger(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &models.OrderDetails{
		OrderSummary: l.Summary(),
		Items:        l.ItemLines(nil),
	}, nil
}

// ListOrderItems returns every line of an order
func (s *Service) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.ItemLine, error) {
	l, err := s.ledger(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return l.ItemLines(nil), nil
}

// MyItems returns the caller's lines of an order and what they owe so far
func (s *Service) MyItems(ctx context.Context, caller models.Caller, orderID uuid.UUID) (*models.MyItemsView, error) {
	l, err := s.ledger(ctx, orderID)
	if err != nil {
		return nil, err
	}

	split := l.Split()
	return &models.MyItemsView{
		OrderID:          l.Order.ID,
		OrderStatus:      l.Order.Status,
		Items:            l.ItemLines(&caller.ID),
		Subtotal:         split.Subtotal(caller.ID),
		DeliveryFeeShare: split.ShareFor(caller.ID),
		Total:            split.Total(caller.ID),
		CanModify:        l.Order.IsOpen(),
	}, nil
}

// PaymentRoster lists every participant of an order with the amount owed and payment status
func (s *Service) PaymentRoster(ctx context.Context, orderID uuid.UUID) (*models.PaymentRoster, error) {
	l, err := s.ledger(ctx, orderID)
	if err != nil {
		return nil, err
	}

	split := l.Split()
	roster := &models.PaymentRoster{
		OrderID:          l.Order.ID,
		RestaurantName:   l.Restaurant.Name,
		Status:           l.Order.Status,
		OrderDate:        l.Order.OrderDate,
		DeliveryFee:      split.DeliveryFee,
		DeliveryFeeShare: split.Share,
		Payments:         make([]models.PaymentRosterEntry, 0, split.ParticipantCount()),
	}
	for _, userID := range split.Participants {
		status, _ := l.PaymentStatus(userID)
		entry := models.PaymentRosterEntry{
			UserID:   userID,
			UserName: l.UserName(userID),
			Amount:   split.Total(userID),
			Status:   status,
		}
		if u, ok := l.Users[userID]; ok {
			entry.Phone = u.Phone
		}
		roster.Payments = append(roster.Payments, entry)
	}
	return roster, nil
}

// Receipt itemizes a closed order per participant
func (s *Service) Receipt(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error) {
	l, err := s.ledger(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if l.Order.IsOpen() {
		return nil, apperror.Conflict("receipt is available once order %s is closed", orderID)
	}
	return l.Receipt(), nil
}
