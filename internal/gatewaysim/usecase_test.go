package gatewaysim

import (
	"context"
	"testing"
	"time"

	"payflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedUseCase(t *testing.T, opts Options) (*UseCase, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	uc := NewUseCase(opts, testMetrics(t), zap.NewNop(), tracenoop.NewTracerProvider().Tracer("test"))
	uc.now = clk.now
	return uc, clk
}

func paidRequest(phone string) models.PaymentRequest {
	return models.PaymentRequest{Tier: models.TierBasic, Method: models.MethodTill, PhoneNumber: phone}
}

func TestSettledCheckoutsExpire(t *testing.T) {
	ctx := context.Background()
	uc, clk := newClockedUseCase(t, Options{ConfirmAfter: 1, Retention: time.Minute})

	first := uc.Initiate(ctx, paidRequest("0712345678"))
	require.True(t, first.Success)
	st, err := uc.Status(ctx, first.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, st)

	clk.advance(30 * time.Second)
	_, err = uc.Status(ctx, first.CheckoutRequestID)
	assert.NoError(t, err, "still within retention")

	clk.advance(31 * time.Second)
	second := uc.Initiate(ctx, paidRequest("0712345679"))
	require.True(t, second.Success)

	uc.mu.Lock()
	_, kept := uc.checkouts[first.CheckoutRequestID]
	size := len(uc.checkouts)
	uc.mu.Unlock()
	assert.False(t, kept)
	assert.Equal(t, 1, size)

	_, err = uc.Status(ctx, first.CheckoutRequestID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestAbandonedCheckoutsExpire(t *testing.T) {
	ctx := context.Background()
	uc, clk := newClockedUseCase(t, Options{ConfirmAfter: 3, Retention: time.Minute})

	out := uc.Initiate(ctx, paidRequest("0712345678"))
	require.True(t, out.Success)

	clk.advance(2 * time.Minute)
	_, err := uc.Status(ctx, out.CheckoutRequestID)
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	assert.Empty(t, uc.checkouts)
}

func TestRetentionDefaults(t *testing.T) {
	uc, _ := newClockedUseCase(t, Options{})
	assert.Equal(t, defaultRetention, uc.opts.Retention)
	assert.Equal(t, 1, uc.opts.ConfirmAfter)
}
