package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"payflow/internal/autorenew"
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

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tier      = flag.String("tier", "", "subscription tier ("+tierList()+")")
		method    = flag.String("method", string(models.MethodTill), "payment type (till or paybill)")
		phone     = flag.String("phone", "", "phone number that receives the payment prompt")
		toggle    = flag.Bool("toggle-auto-renew", false, "toggle auto-renewal instead of paying")
		autoRenew = flag.Bool("auto-renew", false, "current auto-renewal setting, used with -toggle-auto-renew")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, tracer, meter, shutdown, err := telemetry.Setup(ctx, "payflow", cfg.OTLPEndpoint)
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	var tokens csrf.TokenSource = csrf.StaticSource(cfg.CSRFToken)
	if cfg.CSRFToken == "" {
		tokens = csrf.NewMetaSource(nil, cfg.BaseURL+"/subscription")
	}
	client := gateway.NewClient(cfg.BaseURL, tokens, metrics, log, tracer)
	notifier := printNotifier{w: os.Stdout}

	if *toggle {
		sw := autorenew.NewSwitch(client, notifier, metrics, log, *autoRenew)
		sw.Toggle(ctx)
		fmt.Printf("auto-renew: %t\n", sw.Enabled())
		return 0
	}

	ui := payflow.UI{Progress: newSpinner(os.Stderr), Notifier: notifier}
	opts := []payflow.Option{payflow.WithSettings(payflow.Settings{
		Interval:       cfg.PollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		RequestTimeout: cfg.RequestTimeout,
	})}

	if cfg.EventsEnabled() {
		producer := kafka.NewProducer([]string{cfg.KafkaBroker}, cfg.EventsTopic)
		defer producer.Close()

		pub := events.NewPublisher(producer, metrics, log)
		ui.Refresher = pub
		opts = append(opts, payflow.WithOutcomeSink(pub))
	}

	coord := payflow.NewCoordinator(client, ui, metrics, log, tracer, opts...)
	defer coord.Close()

	out := coord.Run(ctx, models.PaymentRequest{
		Tier:        models.Tier(*tier),
		Method:      models.PaymentMethod(*method),
		PhoneNumber: *phone,
	})

	log.Info("done",
		zap.String("state", out.State.String()),
		zap.String("checkout_request_id", out.CorrelationID),
		zap.Int("attempts", out.Attempts),
	)
	if out.State != payflow.StateCompleted {
		return 1
	}
	return 0
}

func tierList() string {
	names := make([]string, 0, len(models.Tiers()))
	for _, t := range models.Tiers() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
