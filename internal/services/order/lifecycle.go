package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"group-order/internal/apperror"
	"group-order/internal/models"
	"group-order/internal/repository"
)

// StartOrder opens a new group order against a restaurant on behalf of a manager
func (s *Service) StartOrder(ctx context.Context, caller models.Caller, restaurantID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		restaurant, err := tx.GetRestaurant(ctx, restaurantID)
		if err != nil {
			return notFound(err, "restaurant %s not found", restaurantID)
		}
		if _, err := tx.GetUser(ctx, caller.ID); err != nil {
			return notFound(err, "user %s not found", caller.ID)
		}
		if !caller.CanManageOrders() {
			return apperror.Forbidden("only managers and admins can start orders")
		}

		now := s.now()
		order = &models.Order{
			ID:           uuid.New(),
			RestaurantID: restaurant.ID,
			ManagerID:    caller.ID,
			Status:       models.OrderOpen,
			OrderDate:    now,
			Audit:        models.Audit{CreatedAt: now, CreatedBy: caller.Actor()},
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	started := *order
	s.dispatch(ctx, "order_started_notify", map[string]any{"order_id": started.ID}, func(ctx context.Context, n Notifier) error {
		return n.NotifyOrderStarted(ctx, &started)
	})

	return order, nil
}

// CloseOrder moves an open order to Closed. Only the order's manager or an
// admin may close it.
func (s *Service) CloseOrder(ctx context.Context, caller models.Caller, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID, repository.LockUpdate)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if !o.IsOpen() {
			return apperror.Conflict("order %s is already closed", orderID)
		}
		if !o.CanBeClosedBy(caller) {
			return apperror.Forbidden("only the order's manager or an admin can close it")
		}

		o.Close(caller.Actor(), s.now())
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to close order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	closed := *order
	closerID := caller.ID
	s.dispatch(ctx, "order_closed_notify", map[string]any{"order_id": closed.ID}, func(ctx context.Context, n Notifier) error {
		// Participant notices and the closer's summary fail independently.
		var g multierror.Group
		g.Go(func() error {
			return n.NotifyOrderClosed(ctx, &closed)
		})
		g.Go(func() error {
			return n.SendSummaryToCloser(ctx, &closed, closerID)
		})
		return g.Wait().ErrorOrNil()
	})

	return order, nil
}
