package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"payflow/internal/config"
	"payflow/internal/csrf"
	"payflow/internal/events"
	"payflow/internal/gateway"
	"payflow/internal/kafka"
	"payflow/internal/models"
	"payflow/internal/payflow"
	"payflow/internal/telemetry"

	"go.uber.org/zap"
)

var customers = []string{"alice", "bob", "carol", "dave", "eve"}

var methods = []models.PaymentMethod{models.MethodTill, models.MethodPaybill}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	log, tracer, meter, shutdown, err := telemetry.Setup(ctx, "load-gen", cfg.OTLPEndpoint)
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down load-gen...")
		cancel()
	}()

	interval := 2 * time.Second
	if v := os.Getenv("INTERVAL_MS"); v != "" {
		if ms, err := time.ParseDuration(v + "ms"); err == nil {
			interval = ms
		}
	}

	token := cfg.CSRFToken
	if token == "" {
		token = cfg.SimCSRFToken
	}
	client := gateway.NewClient(cfg.BaseURL, csrf.StaticSource(token), metrics, log, tracer)

	opts := []payflow.Option{payflow.WithSettings(payflow.Settings{
		Interval:       cfg.PollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		RequestTimeout: cfg.RequestTimeout,
	})}
	var ui payflow.UI
	if cfg.EventsEnabled() {
		producer := kafka.NewProducer([]string{cfg.KafkaBroker}, cfg.EventsTopic)
		defer producer.Close()
		pub := events.NewPublisher(producer, metrics, log)
		ui.Refresher = pub
		opts = append(opts, payflow.WithOutcomeSink(pub))
	}

	// one coordinator per customer: a new attempt supersedes that customer's
	// previous one, as a resubmitted form would
	sessions := make(map[string]*payflow.Coordinator, len(customers))
	for _, c := range customers {
		sessions[c] = payflow.NewCoordinator(client, ui, metrics, log.With(zap.String("customer_id", c)), tracer, opts...)
	}

	log.Info("load-gen started",
		zap.String("target", cfg.BaseURL),
		zap.Duration("interval", interval),
	)

	var wg sync.WaitGroup
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, coord := range sessions {
				coord.Close()
			}
			wg.Wait()
			return
		case <-ticker.C:
			customer := customers[rand.IntN(len(customers))]
			req := randomRequest(cfg.SimFailSuffix)
			f := sessions[customer].Begin(ctx, req)

			wg.Add(1)
			go func() {
				defer wg.Done()
				<-f.Done()
				out := f.Outcome()
				log.Info("payment attempt finished",
					zap.String("customer_id", customer),
					zap.String("tier", string(req.Tier)),
					zap.String("state", out.State.String()),
					zap.Int("attempts", out.Attempts),
					zap.Duration("duration", out.Duration),
				)
			}()
		}
	}
}

// randomRequest picks a tier and payment type. About one in five phone
// numbers ends with failSuffix so the simulator declines it.
func randomRequest(failSuffix string) models.PaymentRequest {
	tiers := models.Tiers()
	phone := fmt.Sprintf("2547%08d", rand.IntN(100_000_000))
	if failSuffix != "" && len(failSuffix) < len(phone) && rand.IntN(5) == 0 {
		phone = phone[:len(phone)-len(failSuffix)] + failSuffix
	}
	return models.PaymentRequest{
		Tier:        tiers[rand.IntN(len(tiers))],
		Method:      methods[rand.IntN(len(methods))],
		PhoneNumber: phone,
	}
}
