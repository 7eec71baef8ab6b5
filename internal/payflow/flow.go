package payflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"payflow/internal/csrf"
	"payflow/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var validate = validator.New()

// Flow drives one payment attempt from initiation to a terminal outcome.
// A Flow is never reused; a new attempt gets a new Flow.
type Flow struct {
	id  string
	req models.PaymentRequest
	env *env

	ctx      context.Context
	cancel   context.CancelCauseFunc
	released chan struct{}
	done     chan struct{}
	begun    time.Time

	mu       sync.Mutex
	state    State
	session  *PollSession
	progress bool
	outcome  Outcome
}

func newFlow(parent context.Context, e *env, req models.PaymentRequest) *Flow {
	ctx, cancel := context.WithCancelCause(parent)
	return &Flow{
		id:     uuid.NewString(),
		req:    req.Normalized(),
		env:    e,
		ctx:      ctx,
		cancel:   cancel,
		released: make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

func (f *Flow) ID() string { return f.id }

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Session returns a copy of the poll session, or false before polling began.
func (f *Flow) Session() (PollSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return PollSession{}, false
	}
	return *f.session, true
}

// Done is closed once the flow is terminal and its side effects have run.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Outcome is only meaningful after Done is closed.
func (f *Flow) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

func (f *Flow) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel stops the flow and waits until it has released its timer and
// progress indicator. It does not wait for the terminal notice, which may
// block on the user. Cancelling a terminal flow is a no-op.
func (f *Flow) Cancel(cause error) {
	f.cancel(cause)
	<-f.released
}

// enter moves Idle to Initiating and shows the progress indicator.
func (f *Flow) enter() {
	f.mu.Lock()
	f.state = StateInitiating
	f.progress = true
	f.begun = time.Now()
	f.mu.Unlock()

	f.env.ui.Progress.Show()
}

func (f *Flow) run() {
	defer close(f.done)
	defer f.cancel(nil)

	ctx, span := f.env.tracer.Start(f.ctx, "PaymentFlow",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("flow.id", f.id),
			attribute.String("payment.tier", string(f.req.Tier)),
			attribute.String("payment.method", string(f.req.Method)),
		),
	)
	defer span.End()

	out := f.drive(ctx)

	span.SetAttributes(
		attribute.String("flow.state", out.State.String()),
		attribute.Int("flow.attempts", out.Attempts),
	)
	if out.Err != nil && out.State != StateCompleted {
		span.SetStatus(codes.Error, out.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

func (f *Flow) drive(ctx context.Context) Outcome {
	if ctx.Err() != nil {
		return f.finish(ctx, f.cancelled(ctx))
	}

	resp, out, ok := f.initiate(ctx)
	if !ok {
		return f.finish(ctx, out)
	}

	if resp.CheckoutRequestID == "" {
		msg := resp.Message
		if msg == "" {
			msg = msgActivated
		}
		return f.finish(ctx, Outcome{State: StateCompleted, Message: msg})
	}

	return f.poll(ctx, resp.CheckoutRequestID)
}

func (f *Flow) initiate(ctx context.Context) (*models.InitiateResponse, Outcome, bool) {
	log := f.env.log.With(zap.String("flow_id", f.id), zap.String("tier", string(f.req.Tier)))

	if err := validate.Struct(f.req); err != nil {
		f.countInitiation(ctx, "invalid")
		log.Info("payment request rejected before sending", zap.Error(err))
		return nil, Outcome{
			State:   StateInitiationError,
			Message: "Error: " + describeValidation(err),
			Err:     fmt.Errorf("%w: %w", ErrInitiation, err),
		}, false
	}

	resp, err := f.env.gateway.Initiate(ctx, f.req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, f.cancelled(ctx), false
		}
		msg := csrf.UserMessage(err)
		if msg == "" {
			msg = msgNetworkError
			f.countInitiation(ctx, "error")
			log.Error("payment initiation failed", zap.Error(err))
		} else {
			f.countInitiation(ctx, "no_token")
			log.Warn("payment initiation held back, security token unusable", zap.Error(err))
		}
		return nil, Outcome{
			State:   StateInitiationError,
			Message: msg,
			Err:     fmt.Errorf("%w: %w", ErrInitiation, err),
		}, false
	}

	if !resp.Success {
		f.countInitiation(ctx, "rejected")
		reason := resp.Error
		if reason == "" {
			reason = "payment could not be initiated"
		}
		log.Warn("payment initiation rejected", zap.String("error", reason))
		return nil, Outcome{
			State:   StateInitiationError,
			Message: "Error: " + reason,
			Err:     fmt.Errorf("%w: %s", ErrInitiation, reason),
		}, false
	}

	if resp.CheckoutRequestID == "" {
		f.countInitiation(ctx, "immediate")
		log.Info("subscription activated without payment")
	} else {
		f.countInitiation(ctx, "accepted")
		log.Info("payment initiated, awaiting confirmation",
			zap.String("checkout_request_id", resp.CheckoutRequestID))
	}
	return resp, Outcome{}, true
}

func (f *Flow) poll(ctx context.Context, checkoutID string) Outcome {
	settings := f.env.settings

	f.mu.Lock()
	f.state = StateAwaitingCallback
	f.session = &PollSession{
		CorrelationID: checkoutID,
		MaxAttempts:   settings.MaxAttempts,
		Interval:      settings.Interval,
	}
	f.state = StatePolling
	f.mu.Unlock()

	t := f.env.newTicker(settings.Interval)
	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return f.finish(ctx, f.cancelled(ctx))
		case <-t.C():
			if out, ok := f.tick(ctx, checkoutID); ok {
				t.Stop()
				return f.finish(ctx, out)
			}
		}
	}
}

// tick runs one status check. The attempt is counted before the request is
// sent, and a terminal status seen on the last allowed attempt wins over the
// attempt cap.
func (f *Flow) tick(ctx context.Context, checkoutID string) (Outcome, bool) {
	f.mu.Lock()
	f.session.Attempts++
	attempt := f.session.Attempts
	exhausted := f.session.Exhausted()
	f.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, f.env.settings.RequestTimeout)
	st, err := f.env.gateway.CheckStatus(reqCtx, checkoutID)
	cancel()

	if ctx.Err() != nil {
		return f.cancelled(ctx), true
	}

	if err != nil {
		f.countPoll(ctx, "error")
		f.env.log.Warn("payment status check failed",
			zap.String("flow_id", f.id),
			zap.String("checkout_request_id", checkoutID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	} else {
		f.countPoll(ctx, string(st.Status))
		switch st.Status {
		case models.StatusCompleted:
			return Outcome{State: StateCompleted, Message: msgPaid}, true
		case models.StatusFailed:
			return Outcome{State: StateFailed, Message: msgFailed, Err: ErrPaymentFailed}, true
		}
	}

	if exhausted {
		return Outcome{State: StateTimedOut, Message: msgTimeout, Err: ErrPaymentTimeout}, true
	}
	return Outcome{}, false
}

func (f *Flow) cancelled(ctx context.Context) Outcome {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return Outcome{State: StateCancelled, Err: cause}
}

// finish records the terminal state and runs its side effects: hide the
// progress indicator, notify, refresh, publish. It runs once per flow.
func (f *Flow) finish(ctx context.Context, out Outcome) Outcome {
	f.mu.Lock()
	out.FlowID = f.id
	out.Tier = f.req.Tier
	out.Duration = time.Since(f.begun)
	if f.session != nil {
		out.CorrelationID = f.session.CorrelationID
		out.Attempts = f.session.Attempts
	}
	f.state = out.State
	f.outcome = out
	hide := f.progress
	f.progress = false
	f.mu.Unlock()

	// side effects outlive a cancelled flow context
	ctx = context.WithoutCancel(ctx)
	ui := f.env.ui

	if hide {
		ui.Progress.Hide()
	}
	close(f.released)

	if out.State != StateCancelled && out.Message != "" {
		ui.Notifier.Notify(ctx, Notice{State: out.State, Message: out.Message})
	}
	if out.State.refreshes() {
		if err := ui.Refresher.Refresh(ctx, out); err != nil {
			f.env.log.Warn("billing refresh failed", zap.String("flow_id", f.id), zap.Error(err))
		}
	}
	f.env.sink.Record(ctx, out)

	attrs := metric.WithAttributes(attribute.String("state", out.State.String()))
	f.env.metrics.Outcomes.Add(ctx, 1, attrs)
	f.env.metrics.FlowDuration.Record(ctx, out.Duration.Seconds(), attrs)

	f.env.log.Info("payment flow finished",
		zap.String("flow_id", f.id),
		zap.String("state", out.State.String()),
		zap.String("checkout_request_id", out.CorrelationID),
		zap.Int("attempts", out.Attempts),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (f *Flow) countInitiation(ctx context.Context, result string) {
	f.env.metrics.Initiations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (f *Flow) countPoll(ctx context.Context, result string) {
	f.env.metrics.PollAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	names := map[string]string{
		"Tier":        "subscription tier",
		"Method":      "payment type",
		"PhoneNumber": "phone number",
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := names[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		if fe.Tag() == "required" {
			parts = append(parts, name+" is required")
		} else {
			parts = append(parts, name+" is not valid")
		}
	}
	return strings.Join(parts, ", ")
}
