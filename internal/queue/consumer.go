package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paycollect/loan-notifier/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// maxBrokerAttempts caps broker-level redeliveries of one task. A
	// message that fails this many times is dead-lettered instead of
	// requeued.
	maxBrokerAttempts = 3

	defaultRetryBackoff = time.Minute
)

type RabbitMQConsumer struct {
	client      *RabbitMQ
	store       TaskStore
	backoffBase time.Duration
	prefetch    int
	logger      *zap.Logger
	now         func() time.Time
}

func NewRabbitMQConsumer(client *RabbitMQ, store TaskStore, backoffBase time.Duration, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if backoffBase <= 0 {
		backoffBase = defaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:      client,
		store:       store,
		backoffBase: backoffBase,
		prefetch:    prefetch,
		logger:      logger,
		now:         time.Now,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, queue, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, queue string, d amqp.Delivery, handler MessageHandler) error {
	var msg TaskMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting message: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid message: %w", rejectErr)
		}
		return nil
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting message: validation failed",
			zap.Error(err),
			zap.String("taskId", msg.TaskID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}

	// All handler log lines for this delivery share the task id.
	handlerCtx := observability.WithCorrelationID(ctx, msg.TaskID)

	if err := handler(handlerCtx, msg); err != nil {
		return c.retryOrDeadLetter(ctx, queue, d, msg, err)
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

// retryOrDeadLetter sends a failed message back through the delayed store
// with exponential backoff, or rejects it to the DLQ once the broker
// attempt budget is spent.
func (c *RabbitMQConsumer) retryOrDeadLetter(ctx context.Context, queue string, d amqp.Delivery, msg TaskMessage, handlerErr error) error {
	attempt := msg.Attempt + 1
	if attempt >= maxBrokerAttempts || c.store == nil {
		c.logger.Error("dead-lettering task",
			zap.Error(handlerErr),
			zap.String("taskId", msg.TaskID),
			zap.Int("attempt", msg.Attempt),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to dead-letter message: %w", rejectErr)
		}
		return nil
	}

	delay := c.backoffBase << msg.Attempt
	retry := Task{
		ID:       msg.TaskID,
		RecordID: msg.RecordID,
		Channel:  msg.Channel,
		RunAt:    c.now().Add(delay),
		Attempt:  attempt,
	}

	if _, err := c.store.Enqueue(ctx, retry, c.now()); err != nil {
		// Could not reach the store, fall back to a broker requeue so
		// the message is not lost.
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("re-enqueue failed and nack failed: %w", nackErr)
		}
		return nil
	}

	c.logger.Warn("task re-enqueued after handler failure",
		zap.Error(handlerErr),
		zap.String("taskId", msg.TaskID),
		zap.String("queue", queue),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack retried delivery: %w", err)
	}

	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
