package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"group-order/internal/logger"
	"group-order/internal/messaging"
	"group-order/internal/models"
)

// Subscriber delivers notification messages taken from the broker
type Subscriber struct {
	consumer *messaging.Consumer
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a subscriber that renders each notification to out
func NewSubscriber(consumer *messaging.Consumer, log *logger.Logger, out io.Writer) *Subscriber {
	return &Subscriber{
		consumer: consumer,
		logger:   log,
		out:      out,
	}
}

// Start consumes notifications until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.handleNotification)

	s.logger.Info("graceful_shutdown", "Stopping notification subscriber", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.RequestID(ctx)

	var msg models.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to parse notification: %v: %w", err, messaging.ErrMalformed)
	}

	text, err := formatNotification(&msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(s.out, text); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Info("notification_delivered", "Notification delivered", requestID, map[string]any{
		"message_id": msg.ID,
		"type":       msg.Type,
		"order_id":   msg.OrderID,
		"recipient":  msg.Recipient.UserID,
		"phone":      msg.Recipient.Phone,
	})
	return nil
}

// formatNotification renders a human readable text for the recipient
func formatNotification(msg *models.NotificationMessage) (string, error) {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	var b strings.Builder
	switch msg.Type {
	case models.NotificationOrderStarted:
		fmt.Fprintf(&b, "[%s] Hi %s, a group order from %s has started. Add your items before it closes.",
			timestamp, msg.Recipient.Name, msg.RestaurantName)

	case models.NotificationOrderClosed:
		fmt.Fprintf(&b, "[%s] Hi %s, the group order from %s is closed. Your receipt follows.",
			timestamp, msg.Recipient.Name, msg.RestaurantName)

	case models.NotificationReceipt:
		if msg.Receipt == nil {
			return "", fmt.Errorf("receipt notification without receipt: %w", messaging.ErrMalformed)
		}
		fmt.Fprintf(&b, "[%s] Hi %s, here is your receipt for the group order from %s.\n", timestamp, msg.Recipient.Name, msg.RestaurantName)
		writeParticipant(&b, msg.Receipt)

	case models.NotificationSummary:
		if msg.Summary == nil {
			return "", fmt.Errorf("summary notification without receipt: %w", messaging.ErrMalformed)
		}
		r := msg.Summary
		fmt.Fprintf(&b, "[%s] Hi %s, summary of the group order from %s\n", timestamp, msg.Recipient.Name, msg.RestaurantName)
		fmt.Fprintf(&b, "Participants: %d, delivery fee %s (%s each)\n",
			r.ParticipantCount, money(r.DeliveryFee), money(r.DeliveryFeePerUser))
		for i := range r.Participants {
			p := &r.Participants[i]
			fmt.Fprintf(&b, "%d. %s (%s)\n", p.Number, p.UserName, p.Phone)
			writeParticipant(&b, p)
		}
		fmt.Fprintf(&b, "Items total: %s\nGrand total: %s", money(r.ItemsTotal), money(r.GrandTotal))

	default:
		return "", fmt.Errorf("unknown notification type %q: %w", msg.Type, messaging.ErrMalformed)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func writeParticipant(b *strings.Builder, p *models.ParticipantReceipt) {
	for _, line := range p.Items {
		fmt.Fprintf(b, "  %d x %s @ %s = %s", line.Quantity, line.MenuItemName, money(line.UnitPrice), money(line.LineTotal))
		if line.Note != nil && *line.Note != "" {
			fmt.Fprintf(b, " (%s)", *line.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "  Subtotal: %s, delivery share: %s, total: %s [%s]\n",
		money(p.Subtotal), money(p.DeliveryFeeShare), money(p.Total), p.PaymentStatus)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
