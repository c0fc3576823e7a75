package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/internal/scheduler"
)

var (
	// ErrMalformedMessage is returned for bodies that are not an EnqueueMessage
	ErrMalformedMessage = errors.New("malformed message")

	// ErrDuplicateMessage is returned for a message id seen within the dedupe window
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrDeliveriesClosed is returned by Run when the broker closes the delivery channel
	ErrDeliveriesClosed = errors.New("delivery channel closed")
)

// Enqueuer accepts jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, req scheduler.EnqueueRequest) (string, error)
}

// DeliverySource starts a consumer on the intake queue
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Deduper remembers message ids for a bounded window
type Deduper interface {
	FirstSeen(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

// retryableError wraps transient failures that should requeue the delivery
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return "retryable error: " + e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// Consumer turns intake deliveries into scheduler jobs
type Consumer struct {
	source      DeliverySource
	enqueuer    Enqueuer
	deduper     Deduper
	consumerTag string
	logger      *slog.Logger
}

// NewConsumer creates a consumer. deduper may be nil.
func NewConsumer(source DeliverySource, enqueuer Enqueuer, deduper Deduper, consumerTag string, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:      source,
		enqueuer:    enqueuer,
		deduper:     deduper,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Run consumes until ctx is cancelled or the broker closes the channel
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Intake consumer started",
		slog.String("consumer_tag", c.consumerTag),
		slog.Bool("dedupe", c.deduper != nil),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Intake consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}
			c.dispatch(ctx, delivery)
		}
	}
}

// dispatch handles one delivery and acknowledges it
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	jobID, err := c.handle(ctx, d)

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ACK message",
				slog.String("job_id", jobID),
				slog.String("error", ackErr.Error()),
			)
		}

	case errors.Is(err, ErrDuplicateMessage):
		c.logger.Info("Duplicate intake message dropped",
			slog.String("message_id", messageID(d, nil)),
		)
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ACK duplicate message",
				slog.String("error", ackErr.Error()),
			)
		}

	default:
		requeue := shouldRequeue(err)
		c.logger.Error("Intake message rejected",
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			c.logger.Error("Failed to NACK message",
				slog.String("error", nackErr.Error()),
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) (string, error) {
	var msg EnqueueMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	id := messageID(d, &msg)
	deduped := false
	if c.deduper != nil && id != "" {
		first, err := c.deduper.FirstSeen(ctx, id)
		if err != nil {
			return "", &retryableError{err: fmt.Errorf("dedupe check failed: %w", err)}
		}
		if !first {
			return "", ErrDuplicateMessage
		}
		deduped = true
	}

	jobID, err := c.enqueuer.Enqueue(ctx, msg.request())
	if err != nil {
		if deduped {
			// let a redelivery through
			if fErr := c.deduper.Forget(ctx, id); fErr != nil {
				c.logger.Warn("Failed to release dedupe key",
					slog.String("message_id", id),
					slog.String("error", fErr.Error()),
				)
			}
		}
		if errors.Is(err, scheduler.ErrClosed) {
			return "", &retryableError{err: err}
		}
		return "", err
	}

	c.logger.Info("Intake message enqueued",
		slog.String("message_id", id),
		slog.String("job_id", jobID),
		slog.String("claim_id", msg.ClaimID),
	)

	return jobID, nil
}

// shouldRequeue determines if a rejected delivery goes back to the queue
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrMalformedMessage) || errors.Is(err, domain.ErrInvalidJob) {
		return false
	}

	var retryable *retryableError
	return errors.As(err, &retryable)
}

func messageID(d amqp.Delivery, msg *EnqueueMessage) string {
	if d.MessageId != "" {
		return d.MessageId
	}
	if msg != nil {
		return msg.MessageID
	}
	return ""
}
