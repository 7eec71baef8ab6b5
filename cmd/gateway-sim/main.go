package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"payflow/internal/config"
	"payflow/internal/gatewaysim"
	"payflow/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic("invalid configuration: " + err.Error())
	}

	log, tracer, meter, shutdown, err := telemetry.Setup(ctx, "gateway-sim", cfg.OTLPEndpoint)
	if err != nil {
		panic("failed to initialize telemetry: " + err.Error())
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		panic("failed to create metrics: " + err.Error())
	}

	uc := gatewaysim.NewUseCase(gatewaysim.Options{
		ConfirmAfter: cfg.SimConfirmAfter,
		FailSuffix:   cfg.SimFailSuffix,
		CSRFToken:    cfg.SimCSRFToken,
	}, metrics, log, tracer)
	app := gatewaysim.NewApp(gatewaysim.NewController(uc, log, tracer))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down gateway-sim...")
		_ = app.Shutdown()
		cancel()
	}()

	log.Info("gateway-sim listening",
		zap.String("addr", cfg.SimAddr),
		zap.Int("confirm_after", cfg.SimConfirmAfter),
		zap.String("fail_suffix", cfg.SimFailSuffix),
	)
	if err := app.Listen(cfg.SimAddr); err != nil {
		log.Error("server error", zap.Error(err))
	}
}
