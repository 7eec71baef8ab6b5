package payflow

import (
	"context"
	"sync"
	"time"

	"payflow/internal/models"
	"payflow/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Settings struct {
	Interval       time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
}

// DefaultSettings polls every 5s for at most 60 attempts, five minutes in all.
func DefaultSettings() Settings {
	return Settings{
		Interval:       5 * time.Second,
		MaxAttempts:    60,
		RequestTimeout: 4 * time.Second,
	}
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop() { r.t.Stop() }

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// env is shared by every flow a Coordinator starts.
type env struct {
	gateway   Gateway
	ui        UI
	sink      OutcomeSink
	settings  Settings
	metrics   *telemetry.Metrics
	log       *zap.Logger
	tracer    trace.Tracer
	newTicker func(time.Duration) ticker
}

type Option func(*env)

func WithSettings(s Settings) Option {
	return func(e *env) {
		if s.Interval > 0 {
			e.settings.Interval = s.Interval
		}
		if s.MaxAttempts > 0 {
			e.settings.MaxAttempts = s.MaxAttempts
		}
		if s.RequestTimeout > 0 {
			e.settings.RequestTimeout = s.RequestTimeout
		}
	}
}

func WithOutcomeSink(s OutcomeSink) Option {
	return func(e *env) { e.sink = s }
}

// Coordinator owns the payment attempts of one user session. At most one
// flow is active at a time; beginning a new one cancels the previous one
// first.
type Coordinator struct {
	env *env

	mu     sync.Mutex
	active *Flow
	closed bool
}

func NewCoordinator(gateway Gateway, ui UI, metrics *telemetry.Metrics, log *zap.Logger, tracer trace.Tracer, opts ...Option) *Coordinator {
	e := &env{
		gateway:   gateway,
		ui:        ui.withDefaults(),
		sink:      nopUI{},
		settings:  DefaultSettings(),
		metrics:   metrics,
		log:       log,
		tracer:    tracer,
		newTicker: newRealTicker,
	}
	for _, opt := range opts {
		opt(e)
	}
	return &Coordinator{env: e}
}

// Begin starts a payment attempt. Any active attempt is cancelled, and its
// timer and progress indicator released, before the new one enters
// Initiating. A terminal attempt has already released both, so Begin does
// not wait for its notice to be dismissed. The returned flow runs in the
// background; use Wait or Done. On a closed Coordinator the flow ends
// Cancelled with ErrClosed without contacting the gateway.
func (c *Coordinator) Begin(ctx context.Context, req models.PaymentRequest) *Flow {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil && !prev.State().Terminal() {
		c.env.log.Info("superseding active payment flow", zap.String("flow_id", prev.ID()))
		prev.Cancel(ErrSuperseded)
	}

	f := newFlow(ctx, c.env, req)
	if c.closed {
		f.cancel(ErrClosed)
	}
	c.active = f
	f.enter()
	go f.run()
	return f
}

// Run begins an attempt and blocks until it is terminal.
func (c *Coordinator) Run(ctx context.Context, req models.PaymentRequest) Outcome {
	f := c.Begin(ctx, req)
	<-f.Done()
	return f.Outcome()
}

func (c *Coordinator) Active() *Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close cancels the active flow, if any, and waits until it has released its
// timer and progress indicator. Flows begun after Close end immediately.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	f := c.active
	c.mu.Unlock()

	if f != nil && !f.State().Terminal() {
		f.Cancel(context.Canceled)
	}
}
