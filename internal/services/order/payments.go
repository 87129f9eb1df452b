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

// UpdatePaymentStatus sets the status of every payment row of a participant.
// Only the order's manager or an admin may do this.
func (s *Service) UpdatePaymentStatus(ctx context.Context, caller models.Caller, orderID, userID uuid.UUID, status models.PaymentStatus) error {
	if status != models.PaymentPaid && status != models.PaymentUnpaid {
		return apperror.Validation("status", "must be one of: Unpaid, Paid")
	}

	var rows int64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order %s not found", orderID)
		}
		if !order.CanBeClosedBy(caller) {
			return apperror.Forbidden("only the order's manager or an admin can update payment status")
		}

		n, err := tx.SetPaymentStatus(ctx, orderID, userID, status, caller.Actor(), s.now())
		if err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("no payment for user %s in order %s", userID, orderID)
		}
		rows = n
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment_status_updated", "Payment status updated", logger.RequestID(ctx), map[string]any{
		"order_id": orderID,
		"user_id":  userID,
		"status":   status,
		"rows":     rows,
	})
	return nil
}
