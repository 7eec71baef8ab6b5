package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"payflow/internal/config"
	"payflow/internal/events"
	"payflow/internal/kafka"
	"payflow/internal/models"
	"payflow/internal/telemetry"

	"go.uber.org/zap"
)

const groupID = "payflow-event-listener"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	log, _, meter, shutdown, err := telemetry.Setup(ctx, "event-listener", cfg.OTLPEndpoint)
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	broker := cfg.KafkaBroker
	if broker == "" {
		broker = "localhost:9092"
	}

	if err := kafka.EnsureTopic(ctx, broker, cfg.EventsTopic, 3, 1); err != nil {
		log.Warn("failed to create events topic", zap.String("topic", cfg.EventsTopic), zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down event-listener...")
		cancel()
	}()

	consumer := kafka.NewConsumer([]string{broker}, cfg.EventsTopic, groupID)
	defer consumer.Close()

	listener := events.NewListener(metrics, log)
	listener.Handle(models.EventPaymentOutcome, func(_ context.Context, ev models.FlowEvent) error {
		log.Info("payment outcome",
			zap.String("flow_id", ev.FlowID),
			zap.String("checkout_request_id", ev.CorrelationID),
			zap.String("tier", string(ev.Tier)),
			zap.String("state", ev.State),
			zap.Int("attempts", ev.Attempts),
		)
		return nil
	})
	listener.Handle(models.EventBillingRefresh, func(_ context.Context, ev models.FlowEvent) error {
		log.Info("billing refresh requested",
			zap.String("flow_id", ev.FlowID),
			zap.String("tier", string(ev.Tier)),
			zap.String("state", ev.State),
		)
		return nil
	})

	log.Info("event-listener started", zap.String("topic", cfg.EventsTopic), zap.String("group", groupID))
	if err := listener.Run(ctx, consumer); err != nil {
		log.Error("consumer error", zap.Error(err))
	}
}
