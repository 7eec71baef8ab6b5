package events

import (
	"context"
	"fmt"

	"payflow/internal/kafka"
	"payflow/internal/models"
	"payflow/internal/telemetry"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, ev models.FlowEvent) error

// Listener routes flow events to handlers registered by event type.
// Events without a handler are acknowledged and dropped.
type Listener struct {
	handlers map[string]Handler
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

func NewListener(metrics *telemetry.Metrics, log *zap.Logger) *Listener {
	return &Listener{handlers: make(map[string]Handler), metrics: metrics, log: log}
}

func (l *Listener) Handle(eventType string, h Handler) {
	l.handlers[eventType] = h
}

func (l *Listener) Dispatch(ctx context.Context, msg kafka.Message) error {
	var ev models.FlowEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("failed to decode flow event: %w", err)
	}
	eventType := msg.EventType
	if eventType == "" {
		eventType = ev.Type
	}

	l.metrics.EventsHandled.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))

	h, ok := l.handlers[eventType]
	if !ok {
		l.log.Debug("no handler for event", zap.String("type", eventType), zap.String("id", ev.ID))
		return nil
	}
	return h(ctx, ev)
}

func (l *Listener) Run(ctx context.Context, consumer *kafka.Consumer) error {
	return consumer.Listen(ctx, l.Dispatch)
}
