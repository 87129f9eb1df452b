package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"group-order/internal/logger"
)

const processingTimeout = 30 * time.Second

// ErrMalformed marks a message that can never be processed. Such messages are
// rejected without requeue instead of being redelivered forever.
var ErrMalformed = errors.New("malformed message")

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

// Acknowledger is the part of a delivery the consumer settles
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming consumes until ctx is cancelled, re-subscribing after the
// broker closes the delivery channel
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		msgs, err := c.subscribe(ctx)
		if err != nil {
			return err
		}

		c.logger.Info("consumer_started",
			fmt.Sprintf("Started consuming from queue %s", c.queueName),
			"", map[string]any{
				"queue":    c.queueName,
				"consumer": c.consumerTag,
				"prefetch": c.prefetch,
			})

		if done := c.drain(ctx, msgs, handler); done {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		}
		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp091.Delivery, error) {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return nil, err
	}

	err = ch.Qos(
		c.prefetch, // prefetch count
		0,          // prefetch size
		false,      // global
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack (we'll ack manually)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return msgs, nil
}

// drain reports true when it stopped because ctx was cancelled
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler MessageHandler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-msgs:
			if !ok {
				return ctx.Err() != nil
			}
			c.process(ctx, d, d.Body, d.DeliveryTag, handler)
		}
	}
}

// process runs handler on one message and settles it: ack on success,
// reject on ErrMalformed, nack with requeue on any other failure
func (c *Consumer) process(ctx context.Context, ack Acknowledger, body []byte, tag uint64, handler MessageHandler) {
	requestID := logger.GenerateRequestID()
	startTime := time.Now()

	c.logger.Debug("message_received", "Processing message", requestID, map[string]any{
		"queue":        c.queueName,
		"message_size": len(body),
		"delivery_tag": tag,
	})

	processingCtx, cancel := context.WithTimeout(logger.WithRequestID(ctx, requestID), processingTimeout)
	defer cancel()

	err := handler(processingCtx, body)
	fields := map[string]any{
		"queue":        c.queueName,
		"duration_ms":  time.Since(startTime).Milliseconds(),
		"delivery_tag": tag,
	}

	switch {
	case err == nil:
		c.logger.Debug("message_processed", "Successfully processed message", requestID, fields)
		if ackErr := ack.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", requestID, ackErr, fields)
		}
	case errors.Is(err, ErrMalformed):
		c.logger.Error("message_rejected", "Dropping malformed message", requestID, err, fields)
		if nackErr := ack.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to reject message", requestID, nackErr, fields)
		}
	default:
		c.logger.Error("message_processing_failed", "Failed to process message", requestID, err, fields)
		if nackErr := ack.Nack(false, true); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, fields)
		}
	}
}

// Close cancels the consumer and closes the connection
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if ch, err := c.conn.Channel(context.Background()); err == nil {
		if err := ch.Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
	}
	return c.conn.Close()
}
