package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"group-order/internal/database"
	"group-order/internal/models"
	"group-order/internal/repository"
)

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var status string
	err := row.Scan(
		&o.ID,
		&o.RestaurantID,
		&o.ManagerID,
		&status,
		&o.OrderDate,
		&o.ClosedAt,
		&o.CreatedAt,
		&o.CreatedBy,
		&o.UpdatedAt,
		&o.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func scanOrderItem(row pgx.Row) (*models.OrderItem, error) {
	var it models.OrderItem
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.UserID,
		&it.MenuItemID,
		&it.Quantity,
		&it.Note,
		&it.CreatedAt,
		&it.CreatedBy,
		&it.UpdatedAt,
		&it.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &it, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	var status string
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&status,
		&p.CreatedAt,
		&p.CreatedBy,
		&p.UpdatedAt,
		&p.UpdatedBy,
	)
	if err != nil {
		return nil, mapError(err)
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func (q *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := q.q.Exec(ctx, database.InsertOrderSQL,
		o.ID, o.RestaurantID, o.ManagerID, string(o.Status), o.OrderDate, o.CreatedAt, o.CreatedBy)
	return mapError(err)
}

func (q *queries) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(q.q.QueryRow(ctx, database.GetOrderSQL, id))
}

func (q *queries) LockOrder(ctx context.Context, id uuid.UUID, mode repository.LockMode) (*models.Order, error) {
	sql := database.LockOrderForShareSQL
	if mode == repository.LockUpdate {
		sql = database.LockOrderForUpdateSQL
	}
	return scanOrder(q.q.QueryRow(ctx, sql, id))
}

func (q *queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	tag, err := q.q.Exec(ctx, database.UpdateOrderSQL,
		o.ID, string(o.Status), o.ClosedAt, o.UpdatedAt, o.UpdatedBy)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	rows, err := q.q.Query(ctx, database.ListOrdersSQL, status, filter.RestaurantID, filter.ParticipantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

func (q *queries) CreateOrderItem(ctx context.Context, it *models.OrderItem) error {
	_, err := q.q.Exec(ctx, database.InsertOrderItemSQL,
		it.ID, it.OrderID, it.UserID, it.MenuItemID, it.Quantity, it.Note, it.CreatedAt, it.CreatedBy)
	return mapError(err)
}

func (q *queries) GetOrderItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error) {
	return scanOrderItem(q.q.QueryRow(ctx, database.GetOrderItemSQL, id))
}

func (q *queries) UpdateOrderItem(ctx context.Context, it *models.OrderItem) error {
	tag, err := q.q.Exec(ctx, database.UpdateOrderItemSQL,
		it.ID, it.Quantity, it.Note, it.UpdatedAt, it.UpdatedBy)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.q.Exec(ctx, database.DeleteOrderItemSQL, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (q *queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := q.q.Query(ctx, database.ListOrderItemsSQL, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrderItem)
}

func (q *queries) EnsurePayment(ctx context.Context, p *models.Payment) (bool, error) {
	tag, err := q.q.Exec(ctx, database.EnsurePaymentSQL,
		p.ID, p.OrderID, p.UserID, string(p.Status), p.CreatedAt, p.CreatedBy)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	rows, err := q.q.Query(ctx, database.ListPaymentsSQL, orderID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}

func (q *queries) FindPayments(ctx context.Context, orderID, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := q.q.Query(ctx, database.FindPaymentsSQL, orderID, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}

func (q *queries) SetPaymentStatus(ctx context.Context, orderID, userID uuid.UUID, status models.PaymentStatus, by string, at time.Time) (int64, error) {
	tag, err := q.q.Exec(ctx, database.UpdatePaymentStatusSQL, orderID, userID, string(status), at, by)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
