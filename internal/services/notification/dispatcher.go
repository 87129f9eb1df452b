// Package notification turns order events into per-recipient messages on the
// broker and renders them on the consuming side.
package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"group-order/internal/billing"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository"
)

const defaultConcurrency = 8

// Publisher sends one message to the broker
type Publisher interface {
	PublishNotification(ctx context.Context, msg *models.NotificationMessage) error
}

// Dispatcher builds notification messages from the store and publishes one per recipient.
// It satisfies the order service's Notifier port.
type Dispatcher struct {
	store       repository.Reader
	publisher   Publisher
	logger      *logger.Logger
	concurrency int
}

func NewDispatcher(store repository.Reader, publisher Publisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		publisher:   publisher,
		logger:      log,
		concurrency: defaultConcurrency,
	}
}

// NotifyOrderStarted tells every end user that an order is open
func (d *Dispatcher) NotifyOrderStarted(ctx context.Context, order *models.Order) error {
	restaurant, err := d.store.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return fmt.Errorf("failed to load restaurant %s: %w", order.RestaurantID, err)
	}

	role := models.RoleEndUser
	users, err := d.store.ListUsers(ctx, &role)
	if err != nil {
		return fmt.Errorf("failed to list end users: %w", err)
	}

	msgs := make([]*models.NotificationMessage, 0, len(users))
	for i := range users {
		msgs = append(msgs, models.NewNotificationMessage(models.NotificationOrderStarted,
			order.ID, restaurant.Name, models.RecipientFromUser(&users[i])))
	}
	return d.publishAll(ctx, models.NotificationOrderStarted, msgs)
}

// NotifyOrderClosed tells every participant that the order is closed, then
// sends each of them their receipt through SendReceipt
func (d *Dispatcher) NotifyOrderClosed(ctx context.Context, order *models.Order) error {
	ledger, err := billing.LoadFor(ctx, d.store, order)
	if err != nil {
		return fmt.Errorf("failed to load order ledger: %w", err)
	}
	receipt := ledger.Receipt()

	msgs := make([]*models.NotificationMessage, 0, len(receipt.Participants))
	for i := range receipt.Participants {
		msgs = append(msgs, models.NewNotificationMessage(models.NotificationOrderClosed,
			order.ID, ledger.Restaurant.Name, recipientOf(ledger, &receipt.Participants[i])))
	}

	var result *multierror.Error
	if err := d.publishAll(ctx, models.NotificationOrderClosed, msgs); err != nil {
		result = multierror.Append(result, err)
	}
	for i := range receipt.Participants {
		if err := d.SendReceipt(ctx, order, receipt.Participants[i].UserID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// SendReceipt sends one participant their receipt
func (d *Dispatcher) SendReceipt(ctx context.Context, order *models.Order, userID uuid.UUID) error {
	ledger, err := billing.LoadFor(ctx, d.store, order)
	if err != nil {
		return fmt.Errorf("failed to load order ledger: %w", err)
	}

	part, ok := ledger.Receipt().Participant(userID)
	if !ok {
		return fmt.Errorf("user %s did not participate in order %s", userID, order.ID)
	}
	msg := models.NewNotificationMessage(models.NotificationReceipt, order.ID, ledger.Restaurant.Name, recipientOf(ledger, part))
	msg.Receipt = part
	return d.publishAll(ctx, models.NotificationReceipt, []*models.NotificationMessage{msg})
}

// SendSummaryToCloser sends the full itemized receipt to whoever closed the order
func (d *Dispatcher) SendSummaryToCloser(ctx context.Context, order *models.Order, closerID uuid.UUID) error {
	closer, err := d.store.GetUser(ctx, closerID)
	if err != nil {
		return fmt.Errorf("failed to load closer %s: %w", closerID, err)
	}

	ledger, err := billing.LoadFor(ctx, d.store, order)
	if err != nil {
		return fmt.Errorf("failed to load order ledger: %w", err)
	}

	msg := models.NewNotificationMessage(models.NotificationSummary, order.ID, ledger.Restaurant.Name, models.RecipientFromUser(closer))
	msg.Summary = ledger.Receipt()
	return d.publishAll(ctx, models.NotificationSummary, []*models.NotificationMessage{msg})
}

func recipientOf(ledger *billing.Ledger, part *models.ParticipantReceipt) models.Recipient {
	if u, ok := ledger.Users[part.UserID]; ok {
		return models.RecipientFromUser(u)
	}
	return models.Recipient{UserID: part.UserID, Name: part.UserName, Phone: part.Phone}
}

// publishAll publishes every message independently. One recipient's failure
// does not stop the others; all failures are returned together.
func (d *Dispatcher) publishAll(ctx context.Context, kind models.NotificationType, msgs []*models.NotificationMessage) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			if err := d.publisher.PublishNotification(ctx, msg); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("recipient %s: %w", msg.Recipient.UserID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	if result != nil {
		failed = result.Len()
	}
	d.logger.Info("notifications_published", fmt.Sprintf("Published %s notifications", kind), logger.RequestID(ctx), map[string]any{
		"type":       kind,
		"recipients": len(msgs),
		"failed":     failed,
	})

	return result.ErrorOrNil()
}
