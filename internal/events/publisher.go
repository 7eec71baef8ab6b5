package events

import (
	"context"
	"time"

	"payflow/internal/models"
	"payflow/internal/payflow"
	"payflow/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Sender interface {
	Publish(ctx context.Context, key, eventType string, value any) error
}

// Publisher puts flow outcomes and billing refresh requests on the event
// bus. It serves as both the flow's Refresher and its OutcomeSink.
type Publisher struct {
	sender  Sender
	metrics *telemetry.Metrics
	log     *zap.Logger
}

func NewPublisher(sender Sender, metrics *telemetry.Metrics, log *zap.Logger) *Publisher {
	return &Publisher{sender: sender, metrics: metrics, log: log}
}

func (p *Publisher) Refresh(ctx context.Context, o payflow.Outcome) error {
	return p.publish(ctx, models.EventBillingRefresh, o)
}

// Record publishes the outcome. Failures are logged; an outcome that cannot
// be published must not hold up the flow.
func (p *Publisher) Record(ctx context.Context, o payflow.Outcome) {
	if err := p.publish(ctx, models.EventPaymentOutcome, o); err != nil {
		p.log.Warn("failed to publish payment outcome",
			zap.String("flow_id", o.FlowID),
			zap.String("state", o.State.String()),
			zap.Error(err),
		)
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, o payflow.Outcome) error {
	ev := NewEvent(eventType, o)
	key := ev.CorrelationID
	if key == "" {
		key = ev.FlowID
	}
	if err := p.sender.Publish(ctx, key, eventType, ev); err != nil {
		return err
	}
	p.metrics.EventsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
	return nil
}

func NewEvent(eventType string, o payflow.Outcome) models.FlowEvent {
	return models.FlowEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		FlowID:        o.FlowID,
		CorrelationID: o.CorrelationID,
		Tier:          o.Tier,
		State:         o.State.String(),
		Attempts:      o.Attempts,
		Message:       o.Message,
		CreatedAt:     time.Now().UTC(),
	}
}
