package notification

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository"
	"group-order/internal/repository/memory"
)

type mockPublisher struct {
	mock.Mock

	mu   sync.Mutex
	sent []*models.NotificationMessage
}

func (m *mockPublisher) PublishNotification(ctx context.Context, msg *models.NotificationMessage) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.sent = append(m.sent, msg)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *mockPublisher) byRecipient() map[uuid.UUID]*models.NotificationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*models.NotificationMessage, len(m.sent))
	for _, msg := range m.sent {
		out[msg.Recipient.UserID] = msg
	}
	return out
}

func (m *mockPublisher) find(kind models.NotificationType, id uuid.UUID) *models.NotificationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.sent {
		if msg.Type == kind && msg.Recipient.UserID == id {
			return msg
		}
	}
	return nil
}

func to(id uuid.UUID) any {
	return mock.MatchedBy(func(msg *models.NotificationMessage) bool {
		return msg.Recipient.UserID == id
	})
}

type fixture struct {
	store      *memory.Store
	order      *models.Order
	restaurant *models.Restaurant
	manager    *models.User
	alice      *models.User
	bob        *models.User
	carol      *models.User
}

// newFixture seeds a closed order in which Alice bought two pizzas and Bob one
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:      memory.NewStore(),
		restaurant: &models.Restaurant{ID: uuid.New(), Name: "Pizza Planet", DeliveryFee: decimal.RequireFromString("9.00")},
		manager:    &models.User{ID: uuid.New(), Name: "Maria", Phone: "200", Role: models.RoleManager},
		alice:      &models.User{ID: uuid.New(), Name: "Alice", Phone: "201", Role: models.RoleEndUser},
		bob:        &models.User{ID: uuid.New(), Name: "Bob", Phone: "202", Role: models.RoleEndUser},
		carol:      &models.User{ID: uuid.New(), Name: "Carol", Phone: "203", Role: models.RoleEndUser},
	}
	pizza := &models.MenuItem{ID: uuid.New(), RestaurantID: f.restaurant.ID, Name: "Pizza", Price: decimal.RequireFromString("6.00")}

	closedAt := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	f.order = &models.Order{
		ID:           uuid.New(),
		RestaurantID: f.restaurant.ID,
		ManagerID:    f.manager.ID,
		Status:       models.OrderClosed,
		OrderDate:    closedAt.Add(-time.Hour),
		ClosedAt:     &closedAt,
	}

	err := f.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateRestaurant(ctx, f.restaurant); err != nil {
			return err
		}
		if err := tx.CreateMenuItem(ctx, pizza); err != nil {
			return err
		}
		for _, u := range []*models.User{f.manager, f.alice, f.bob, f.carol} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		if err := tx.CreateOrder(ctx, f.order); err != nil {
			return err
		}
		for _, line := range []struct {
			user *models.User
			qty  int
		}{{f.alice, 2}, {f.bob, 1}} {
			item := &models.OrderItem{ID: uuid.New(), OrderID: f.order.ID, UserID: line.user.ID, MenuItemID: pizza.ID, Quantity: line.qty}
			if err := tx.CreateOrderItem(ctx, item); err != nil {
				return err
			}
			payment := &models.Payment{ID: uuid.New(), OrderID: f.order.ID, UserID: line.user.ID, Status: models.PaymentUnpaid}
			if _, err := tx.EnsurePayment(ctx, payment); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) dispatcher(pub Publisher) (*Dispatcher, *bytes.Buffer) {
	var logs bytes.Buffer
	return NewDispatcher(f.store, pub, logger.NewWithWriter("test", "debug", &logs)), &logs
}

func TestNotifyOrderStarted(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)
	d, logs := f.dispatcher(pub)

	require.NoError(t, d.NotifyOrderStarted(context.Background(), f.order))

	pub.AssertNumberOfCalls(t, "PublishNotification", 3)
	sent := pub.byRecipient()
	for _, u := range []*models.User{f.alice, f.bob, f.carol} {
		msg, ok := sent[u.ID]
		require.True(t, ok, "no message for %s", u.Name)
		assert.Equal(t, models.NotificationOrderStarted, msg.Type)
		assert.Equal(t, "Pizza Planet", msg.RestaurantName)
		assert.Equal(t, u.Phone, msg.Recipient.Phone)
	}
	assert.NotContains(t, sent, f.manager.ID)
	assert.Contains(t, logs.String(), "notifications_published")
}

func TestNotifyOrderStartedCollectsFailures(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, to(f.bob.ID)).Return(errors.New("broker down"))
	pub.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)
	d, _ := f.dispatcher(pub)

	err := d.NotifyOrderStarted(context.Background(), f.order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), f.bob.ID.String())

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)

	sent := pub.byRecipient()
	assert.Contains(t, sent, f.alice.ID)
	assert.Contains(t, sent, f.carol.ID)
	assert.NotContains(t, sent, f.bob.ID)
}

func TestNotifyOrderClosed(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)
	d, _ := f.dispatcher(pub)

	require.NoError(t, d.NotifyOrderClosed(context.Background(), f.order))

	// a closure notice and a receipt for each of the two participants
	pub.AssertNumberOfCalls(t, "PublishNotification", 4)
	assert.NotContains(t, pub.byRecipient(), f.carol.ID)

	for _, u := range []*models.User{f.alice, f.bob} {
		notice := pub.find(models.NotificationOrderClosed, u.ID)
		require.NotNil(t, notice, "no closure notice for %s", u.Name)
		assert.Equal(t, "Pizza Planet", notice.RestaurantName)
		assert.Nil(t, notice.Receipt)
	}

	alice := pub.find(models.NotificationReceipt, f.alice.ID)
	require.NotNil(t, alice)
	require.NotNil(t, alice.Receipt)
	assert.Equal(t, f.alice.ID, alice.Receipt.UserID)
	assert.True(t, alice.Receipt.Subtotal.Equal(decimal.NewFromInt(12)))
	assert.True(t, alice.Receipt.DeliveryFeeShare.Equal(decimal.RequireFromString("4.5")))
	assert.True(t, alice.Receipt.Total.Equal(decimal.RequireFromString("16.5")))
	assert.Len(t, alice.Receipt.Items, 1)

	bob := pub.find(models.NotificationReceipt, f.bob.ID)
	require.NotNil(t, bob)
	require.NotNil(t, bob.Receipt)
	assert.True(t, bob.Receipt.Total.Equal(decimal.RequireFromString("10.5")))
	assert.Nil(t, bob.Summary)
}

func TestNotifyOrderClosedCollectsFailures(t *testing.T) {
	f := newFixture(t)
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, to(f.bob.ID)).Return(errors.New("broker down"))
	pub.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)
	d, _ := f.dispatcher(pub)

	err := d.NotifyOrderClosed(context.Background(), f.order)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2, "bob's notice and receipt both fail")

	assert.NotNil(t, pub.find(models.NotificationOrderClosed, f.alice.ID))
	assert.NotNil(t, pub.find(models.NotificationReceipt, f.alice.ID))
}

func TestSendReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)
	d, _ := f.dispatcher(pub)

	require.NoError(t, d.SendReceipt(ctx, f.order, f.bob.ID))
	msg := pub.byRecipient()[f.bob.ID]
	require.NotNil(t, msg)
	assert.Equal(t, models.NotificationReceipt, msg.Type)
	assert.Equal(t, models.PaymentUnpaid, msg.Receipt.PaymentStatus)

	err := d.SendReceipt(ctx, f.order, f.carol.ID)
	require.Error(t, err)
	pub.AssertNumberOfCalls(t, "PublishNotification", 1)
}

func TestSendSummaryToCloser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &mockPublisher{}
	pub.On("PublishNotification", mock.Anything, to(f.manager.ID)).Return(nil)
	d, _ := f.dispatcher(pub)

	require.NoError(t, d.SendSummaryToCloser(ctx, f.order, f.manager.ID))
	pub.AssertExpectations(t)

	msg := pub.byRecipient()[f.manager.ID]
	require.NotNil(t, msg)
	assert.Equal(t, models.NotificationSummary, msg.Type)
	require.NotNil(t, msg.Summary)
	assert.Equal(t, 2, msg.Summary.ParticipantCount)
	assert.True(t, msg.Summary.GrandTotal.Equal(decimal.NewFromInt(27)))

	err := d.SendSummaryToCloser(ctx, f.order, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
