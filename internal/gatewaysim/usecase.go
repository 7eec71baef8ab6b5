package gatewaysim

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"payflow/internal/models"
	"payflow/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrCheckoutNotFound = errors.New("checkout not found")

type Options struct {
	// ConfirmAfter is the number of status checks a checkout stays pending.
	ConfirmAfter int
	// Phone numbers ending in FailSuffix have their payment declined.
	FailSuffix string
	CSRFToken  string
	AutoRenew  bool
	// Retention is how long a checkout stays queryable after it settles, or
	// after it was created if it is never polled to completion.
	Retention time.Duration
}

const defaultRetention = 10 * time.Minute

type checkout struct {
	id        string
	tier      models.Tier
	method    models.PaymentMethod
	phone     string
	amount    decimal.Decimal
	polls     int
	status    models.PaymentStatus
	createdAt time.Time
	settledAt time.Time
}

func (co *checkout) expired(now time.Time, retention time.Duration) bool {
	since := co.createdAt
	if !co.settledAt.IsZero() {
		since = co.settledAt
	}
	return now.Sub(since) > retention
}

// UseCase stands in for the billing server and the mobile money provider
// behind it. State lives in memory only.
type UseCase struct {
	opts    Options
	metrics *telemetry.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu        sync.Mutex
	checkouts map[string]*checkout
	autoRenew bool
}

func NewUseCase(opts Options, metrics *telemetry.Metrics, log *zap.Logger, tracer trace.Tracer) *UseCase {
	if opts.ConfirmAfter < 1 {
		opts.ConfirmAfter = 1
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	return &UseCase{
		opts:      opts,
		metrics:   metrics,
		log:       log,
		tracer:    tracer,
		now:       time.Now,
		checkouts: make(map[string]*checkout),
		autoRenew: opts.AutoRenew,
	}
}

func (uc *UseCase) Initiate(ctx context.Context, req models.PaymentRequest) *models.InitiateResponse {
	ctx, span := uc.tracer.Start(ctx, "InitiateSubscriptionPayment",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("payment.tier", string(req.Tier)),
			attribute.String("payment.method", string(req.Method)),
		),
	)
	defer span.End()

	req = req.Normalized()
	plan, err := models.LookupTier(req.Tier)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &models.InitiateResponse{Error: "Invalid subscription tier"}
	}

	if plan.Free() {
		span.SetStatus(codes.Ok, "")
		uc.log.Info("free plan activated", zap.String("tier", string(plan.Tier)))
		return &models.InitiateResponse{Success: true, Message: "Free plan activated successfully"}
	}

	if req.Method != models.MethodTill && req.Method != models.MethodPaybill {
		span.SetStatus(codes.Error, "invalid payment type")
		return &models.InitiateResponse{Error: "Invalid payment type"}
	}

	phone := strings.TrimPrefix(req.PhoneNumber, "+")
	if phone == "" {
		span.SetStatus(codes.Error, "phone number missing")
		return &models.InitiateResponse{Error: "Phone number is required"}
	}

	co := &checkout{
		id:        "ws_CO_" + uuid.NewString(),
		tier:      plan.Tier,
		method:    req.Method,
		phone:     phone,
		amount:    plan.MonthlyPrice,
		status:    models.StatusPending,
		createdAt: uc.now(),
	}

	uc.mu.Lock()
	pruned := uc.prune(co.createdAt)
	uc.checkouts[co.id] = co
	uc.mu.Unlock()

	if pruned > 0 {
		uc.log.Debug("expired checkouts removed", zap.Int("count", pruned))
	}

	span.SetAttributes(
		attribute.String("payment.checkout_request_id", co.id),
		attribute.String("payment.amount", co.amount.StringFixed(2)),
	)
	span.SetStatus(codes.Ok, "")

	uc.log.Info("checkout created",
		zap.String("checkout_request_id", co.id),
		zap.String("tier", string(co.tier)),
		zap.String("method", string(co.method)),
		zap.String("amount", co.amount.StringFixed(2)),
	)

	return &models.InitiateResponse{
		Success:           true,
		CheckoutRequestID: co.id,
		Message:           "Payment request sent to " + phone + ". Enter your PIN to complete.",
	}
}

// Status counts one check against the checkout and settles it once it has
// been checked ConfirmAfter times.
func (uc *UseCase) Status(ctx context.Context, id string) (models.PaymentStatus, error) {
	ctx, span := uc.tracer.Start(ctx, "CheckPaymentStatus",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("payment.checkout_request_id", id)),
	)
	defer span.End()

	uc.mu.Lock()
	co, ok := uc.checkouts[id]
	if ok && co.expired(uc.now(), uc.opts.Retention) {
		delete(uc.checkouts, id)
		ok = false
	}
	if !ok {
		uc.mu.Unlock()
		span.SetStatus(codes.Error, ErrCheckoutNotFound.Error())
		return "", ErrCheckoutNotFound
	}

	settled := false
	co.polls++
	if co.status == models.StatusPending && co.polls >= uc.opts.ConfirmAfter {
		co.status = models.StatusCompleted
		if uc.opts.FailSuffix != "" && strings.HasSuffix(co.phone, uc.opts.FailSuffix) {
			co.status = models.StatusFailed
		}
		co.settledAt = uc.now()
		settled = true
	}
	status := co.status
	polls := co.polls
	uc.mu.Unlock()

	if settled {
		uc.metrics.SimCheckouts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tier", string(co.tier)),
			attribute.String("result", string(status)),
		))
		uc.log.Info("checkout settled",
			zap.String("checkout_request_id", id),
			zap.String("status", string(status)),
			zap.Int("polls", polls),
		)
	}

	span.SetAttributes(attribute.String("payment.status", string(status)))
	span.SetStatus(codes.Ok, "")
	return status, nil
}

// prune drops expired checkouts. The caller holds uc.mu.
func (uc *UseCase) prune(now time.Time) int {
	n := 0
	for id, co := range uc.checkouts {
		if co.expired(now, uc.opts.Retention) {
			delete(uc.checkouts, id)
			n++
		}
	}
	return n
}

func (uc *UseCase) ToggleAutoRenew(ctx context.Context) *models.ToggleResponse {
	_, span := uc.tracer.Start(ctx, "ToggleAutoRenew", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	uc.mu.Lock()
	uc.autoRenew = !uc.autoRenew
	enabled := uc.autoRenew
	uc.mu.Unlock()

	span.SetAttributes(attribute.Bool("subscription.auto_renew", enabled))
	uc.log.Info("auto-renew toggled", zap.Bool("auto_renew", enabled))

	msg := "Auto-renewal disabled"
	if enabled {
		msg = "Auto-renewal enabled"
	}
	return &models.ToggleResponse{Success: true, AutoRenew: &enabled, Message: msg}
}
