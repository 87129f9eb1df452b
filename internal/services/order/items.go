package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"group-order/internal/apperror"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository"
)

// AddItemInput describes a new order line
type AddItemInput struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int
	Note       *string
}

// UpdateItemInput replaces the quantity and note of an order line
type UpdateItemInput struct {
	Quantity int
	Note     *string
}

// AddItem adds a line for the caller to an open order. The caller's payment
// row is created with the first line they ever add.
func (s *Service) AddItem(ctx context.Context, caller models.Caller, in AddItemInput) (*models.OrderItem, error) {
	var item *models.OrderItem

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, in.OrderID, repository.LockShare)
		if err != nil {
			return notFound(err, "order %s not found", in.OrderID)
		}
		menuItem, err := tx.GetMenuItem(ctx, in.MenuItemID)
		if err != nil {
			return notFound(err, "menu item %s not found", in.MenuItemID)
		}
		if !order.IsOpen() {
			return apperror.Conflict("order %s is closed", order.ID)
		}
		if menuItem.RestaurantID != order.RestaurantID {
			return apperror.Validation("menu_item_id", "menu item does not belong to the order's restaurant")
		}
		if err := models.ValidateItemInput(in.Quantity, in.Note); err != nil {
			return err
		}

		now := s.now()
		audit := models.Audit{CreatedAt: now, CreatedBy: caller.Actor()}
		item = &models.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			UserID:     caller.ID,
			MenuItemID: menuItem.ID,
			Quantity:   in.Quantity,
			Note:       in.Note,
			Audit:      audit,
		}
		if err := tx.CreateOrderItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}

		created, err := tx.EnsurePayment(ctx, &models.Payment{
			ID:      uuid.New(),
			OrderID: order.ID,
			UserID:  caller.ID,
			Status:  models.PaymentUnpaid,
			Audit:   audit,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if created {
			s.logger.Debug("payment_created", "Participant joined order", logger.RequestID(ctx), map[string]any{
				"order_id": order.ID,
				"user_id":  caller.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem changes an order line. Owners may update their own lines;
// managers and admins may update anyone's.
func (s *Service) UpdateItem(ctx context.Context, caller models.Caller, itemID uuid.UUID, in UpdateItemInput) (*models.OrderItem, error) {
	var item *models.OrderItem

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		it, err := tx.GetOrderItem(ctx, itemID)
		if err != nil {
			return notFound(err, "order item %s not found", itemID)
		}
		if it.UserID != caller.ID && !caller.CanManageOrders() {
			return apperror.Forbidden("you can only update your own items")
		}
		if err := s.requireOpen(ctx, tx, it.OrderID); err != nil {
			return err
		}
		if err := models.ValidateItemInput(in.Quantity, in.Note); err != nil {
			return err
		}

		it.Quantity = in.Quantity
		it.Note = in.Note
		it.Touch(caller.Actor(), s.now())
		if err := tx.UpdateOrderItem(ctx, it); err != nil {
			return notFound(err, "order item %s not found", itemID)
		}
		item = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes one of the caller's own lines. The caller's payment row
// is kept, so they stay a participant of the order.
func (s *Service) DeleteItem(ctx context.Context, caller models.Caller, itemID uuid.UUID) error {
	return s.store.InTx(ctx, func(tx repository.Tx) error {
		it, err := tx.GetOrderItem(ctx, itemID)
		if err != nil {
			return notFound(err, "order item %s not found", itemID)
		}
		if it.UserID != caller.ID {
			return apperror.Forbidden("you can only delete your own items")
		}
		if err := s.requireOpen(ctx, tx, it.OrderID); err != nil {
			return err
		}
		if err := tx.DeleteOrderItem(ctx, itemID); err != nil {
			return notFound(err, "order item %s not found", itemID)
		}
		return nil
	})
}

// requireOpen share-locks the order and fails with a conflict when it is closed
func (s *Service) requireOpen(ctx context.Context, tx repository.Tx, orderID uuid.UUID) error {
	order, err := tx.LockOrder(ctx, orderID, repository.LockShare)
	if err != nil {
		return notFound(err, "order %s not found", orderID)
	}
	if !order.IsOpen() {
		return apperror.Conflict("order %s is closed", orderID)
	}
	return nil
}
