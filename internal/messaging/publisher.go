package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/claims-pipeline/internal/domain"
	"github.com/cuongbtq/claims-pipeline/shared/rabbitmq"
)

// MessagePublisher sends one message to the broker
type MessagePublisher interface {
	Publish(ctx context.Context, msg rabbitmq.Message) error
}

// Publisher emits terminal job outcomes. It implements scheduler.Notifier.
type Publisher struct {
	client     MessagePublisher
	routingKey string
	logger     *slog.Logger
}

// NewPublisher creates a publisher for the outcome routing key
func NewPublisher(client MessagePublisher, routingKey string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:     client,
		routingKey: routingKey,
		logger:     logger,
	}
}

// JobFinished publishes the job outcome
func (p *Publisher) JobFinished(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(newOutcomeEvent(job))
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	if err := p.client.Publish(ctx, rabbitmq.Message{
		RoutingKey:  p.routingKey,
		MessageID:   job.ID + ":" + string(job.Status),
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		return fmt.Errorf("failed to publish outcome for job %s: %w", job.ID, err)
	}

	p.logger.Debug("Job outcome published",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
	)

	return nil
}
