package autorenew

import (
	"context"
	"sync"

	"payflow/internal/csrf"
	"payflow/internal/models"
	"payflow/internal/payflow"
	"payflow/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Toggler interface {
	ToggleAutoRenew(ctx context.Context) (*models.ToggleResponse, error)
}

// Switch mirrors the auto-renew checkbox. It flips before the server
// answers and flips back when the server does not confirm.
type Switch struct {
	toggler  Toggler
	notifier payflow.Notifier
	metrics  *telemetry.Metrics
	log      *zap.Logger

	mu      sync.Mutex
	enabled bool
}

func NewSwitch(toggler Toggler, notifier payflow.Notifier, metrics *telemetry.Metrics, log *zap.Logger, enabled bool) *Switch {
	return &Switch{toggler: toggler, notifier: notifier, metrics: metrics, log: log, enabled: enabled}
}

func (s *Switch) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Toggle flips the switch and returns the state it settled on.
func (s *Switch) Toggle(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.enabled
	s.enabled = !previous

	resp, err := s.toggler.ToggleAutoRenew(ctx)
	switch {
	case err != nil:
		s.enabled = previous
		msg := csrf.UserMessage(err)
		if msg == "" {
			msg = "An error occurred. Please try again."
		}
		s.count(ctx, "error")
		s.log.Error("auto-renew toggle failed", zap.Error(err))
		s.notify(ctx, payflow.StateFailed, msg)
	case !resp.Success:
		s.enabled = previous
		s.count(ctx, "rejected")
		s.log.Warn("auto-renew toggle rejected", zap.String("error", resp.Error))
		s.notify(ctx, payflow.StateFailed, "Error: "+resp.Error)
	default:
		if resp.AutoRenew != nil {
			s.enabled = *resp.AutoRenew
		}
		s.count(ctx, "ok")
		s.log.Info("auto-renew toggled", zap.Bool("enabled", s.enabled))
		s.notify(ctx, payflow.StateCompleted, resp.Message)
	}
	return s.enabled
}

func (s *Switch) notify(ctx context.Context, state payflow.State, msg string) {
	if msg == "" {
		return
	}
	s.notifier.Notify(ctx, payflow.Notice{State: state, Message: msg})
}

func (s *Switch) count(ctx context.Context, result string) {
	s.metrics.AutoRenew.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
