package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	topic  string
	tracer trace.Tracer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		tracer: otel.Tracer("payflow/kafka/producer"),
	}
}

func (p *Producer) Topic() string { return p.topic }

// Publish writes value as JSON under key. Messages with the same key land
// on the same partition, so the events of one checkout stay ordered.
func (p *Producer) Publish(ctx context.Context, key, eventType string, value any) error {
	ctx, span := p.tracer.Start(ctx, fmt.Sprintf("publish %s", p.topic),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			attribute.String("messaging.kafka.message.key", key),
			attribute.String("payflow.event_type", eventType),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	headers := []kafka.Header{
		{Key: headerEventType, Value: []byte(eventType)},
		{Key: headerContentType, Value: []byte("application/json")},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headerCarrier{headers: &headers})

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Time:    time.Now(),
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
