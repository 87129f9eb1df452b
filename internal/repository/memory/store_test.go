package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-order/internal/models"
	"group-order/internal/repository"
)

func seedOrder(t *testing.T, s *Store, date time.Time) (*models.Restaurant, *models.Order) {
	t.Helper()
	ctx := context.Background()

	r := &models.Restaurant{ID: uuid.New(), Name: "Luigi's", DeliveryFee: decimal.NewFromInt(10)}
	o := &models.Order{ID: uuid.New(), RestaurantID: r.ID, ManagerID: uuid.New(), Status: models.OrderOpen, OrderDate: date}

	err := s.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetRestaurant(ctx, r.ID); errors.Is(err, repository.ErrNotFound) {
			if err := tx.CreateRestaurant(ctx, r); err != nil {
				return err
			}
		}
		return tx.CreateOrder(ctx, o)
	})
	require.NoError(t, err)
	return r, o
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	_, o := seedOrder(t, s, time.Now())

	got, err := s.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, o := seedOrder(t, s, time.Now())

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Tx) error {
		item := &models.OrderItem{ID: uuid.New(), OrderID: o.ID, UserID: uuid.New(), MenuItemID: uuid.New(), Quantity: 1}
		if err := tx.CreateOrderItem(ctx, item); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, err := s.ListOrderItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInjectFault(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, o := seedOrder(t, s, time.Now())

	injected := errors.New("disk full")
	s.InjectFault("EnsurePayment", injected)

	err := s.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.EnsurePayment(ctx, &models.Payment{ID: uuid.New(), OrderID: o.ID, UserID: uuid.New()})
		return err
	})
	assert.ErrorIs(t, err, injected)

	s.InjectFault("EnsurePayment", nil)
	err = s.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.EnsurePayment(ctx, &models.Payment{ID: uuid.New(), OrderID: o.ID, UserID: uuid.New()})
		return err
	})
	assert.NoError(t, err)
}

func TestEnsurePaymentIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, o := seedOrder(t, s, time.Now())
	user := uuid.New()

	var wg sync.WaitGroup
	created := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(ctx, func(tx repository.Tx) error {
				ok, err := tx.EnsurePayment(ctx, &models.Payment{
					ID: uuid.New(), OrderID: o.ID, UserID: user, Status: models.PaymentUnpaid,
				})
				created <- ok
				return err
			})
		}()
	}
	wg.Wait()
	close(created)

	n := 0
	for ok := range created {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)

	payments, err := s.FindPayments(ctx, o.ID, user)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestListOrdersFiltersAndOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, older := seedOrder(t, s, base)
	_, newer := seedOrder(t, s, base.Add(time.Hour))
	_, closed := seedOrder(t, s, base.Add(2*time.Hour))

	user := uuid.New()
	err := s.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, closed.ID, repository.LockUpdate)
		if err != nil {
			return err
		}
		o.Close("test", base.Add(3*time.Hour))
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		_, err = tx.EnsurePayment(ctx, &models.Payment{ID: uuid.New(), OrderID: older.ID, UserID: user})
		return err
	})
	require.NoError(t, err)

	open := models.OrderOpen
	active, err := s.ListOrders(ctx, repository.OrderFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, newer.ID, active[0].ID)
	assert.Equal(t, older.ID, active[1].ID)

	mine, err := s.ListOrders(ctx, repository.OrderFilter{ParticipantID: &user})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, older.ID, mine[0].ID)

	all, err := s.ListOrders(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, closed.ID, all[0].ID)
}

func TestCreateUserRejectsDuplicatePhone(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	create := func(phone string) error {
		return s.InTx(ctx, func(tx repository.Tx) error {
			return tx.CreateUser(ctx, &models.User{ID: uuid.New(), Name: "U", Phone: phone, Role: models.RoleEndUser})
		})
	}

	require.NoError(t, create("555"))
	assert.ErrorIs(t, create("555"), repository.ErrDuplicate)
	assert.NoError(t, create("556"))
}

func TestSetPaymentStatusUpdatesEveryMatchingRow(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, o := seedOrder(t, s, time.Now())
	user := uuid.New()

	s.AppendPayment(models.Payment{ID: uuid.New(), OrderID: o.ID, UserID: user, Status: models.PaymentUnpaid})
	s.AppendPayment(models.Payment{ID: uuid.New(), OrderID: o.ID, UserID: user, Status: models.PaymentUnpaid})

	var n int64
	err := s.InTx(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.SetPaymentStatus(ctx, o.ID, user, models.PaymentPaid, "Maria", time.Now())
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	payments, err := s.FindPayments(ctx, o.ID, user)
	require.NoError(t, err)
	for _, p := range payments {
		assert.Equal(t, models.PaymentPaid, p.Status)
		assert.Equal(t, "Maria", p.UpdatedBy)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.GetOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetOrderItem(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateUserKeepsPhoneAndPassword(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := &models.User{ID: uuid.New(), Name: "Alice", Phone: "201", PasswordHash: "hash", Role: models.RoleEndUser}
	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error { return tx.CreateUser(ctx, u) }))

	changed := *u
	changed.Role = models.RoleManager
	changed.Phone = "999"
	changed.PasswordHash = ""
	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error { return tx.UpdateUser(ctx, &changed) }))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, got.Role)
	assert.Equal(t, "201", got.Phone)
	assert.Equal(t, "hash", got.PasswordHash)

	err = s.InTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateUser(ctx, &models.User{ID: uuid.New()})
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateMenuItemKeepsRestaurant(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r, _ := seedOrder(t, s, time.Now())
	m := &models.MenuItem{ID: uuid.New(), RestaurantID: r.ID, Name: "Pizza", Price: decimal.NewFromInt(6)}
	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error { return tx.CreateMenuItem(ctx, m) }))

	changed := *m
	changed.RestaurantID = uuid.New()
	changed.Price = decimal.NewFromInt(8)
	require.NoError(t, s.InTx(ctx, func(tx repository.Tx) error { return tx.UpdateMenuItem(ctx, &changed) }))

	got, err := s.GetMenuItem(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.RestaurantID)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(8)))

	err = s.InTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateMenuItem(ctx, &models.MenuItem{ID: uuid.New()})
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
