package payflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payflow/internal/models"
	"payflow/internal/telemetry"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type statusStep struct {
	status models.PaymentStatus
	err    error
}

func pending(n int) []statusStep {
	steps := make([]statusStep, n)
	for i := range steps {
		steps[i] = statusStep{status: models.StatusPending}
	}
	return steps
}

type fakeGateway struct {
	initResp *models.InitiateResponse
	initErr  error
	block    chan struct{}

	mu       sync.Mutex
	steps    []statusStep
	inits    int
	checks   int
	checkIDs []string
}

func (g *fakeGateway) Initiate(ctx context.Context, _ models.PaymentRequest) (*models.InitiateResponse, error) {
	g.mu.Lock()
	g.inits++
	g.mu.Unlock()
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.initResp, g.initErr
}

func (g *fakeGateway) CheckStatus(_ context.Context, id string) (*models.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	g.checkIDs = append(g.checkIDs, id)
	if len(g.steps) == 0 {
		return &models.StatusResponse{Status: models.StatusPending}, nil
	}
	step := g.steps[0]
	g.steps = g.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return &models.StatusResponse{Status: step.status}, nil
}

func (g *fakeGateway) counts() (inits, checks int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inits, g.checks
}

// eventLog records UI and timer events in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) count(e string) int {
	n := 0
	for _, got := range l.all() {
		if got == e {
			n++
		}
	}
	return n
}

type recordingUI struct {
	log *eventLog

	mu        sync.Mutex
	notices   []Notice
	refreshes []Outcome
	recorded  []Outcome
}

func (u *recordingUI) Show() { u.log.add("show") }
func (u *recordingUI) Hide() { u.log.add("hide") }

func (u *recordingUI) Notify(_ context.Context, n Notice) {
	u.mu.Lock()
	u.notices = append(u.notices, n)
	u.mu.Unlock()
	u.log.add("notify")
}

func (u *recordingUI) Refresh(_ context.Context, o Outcome) error {
	u.mu.Lock()
	u.refreshes = append(u.refreshes, o)
	u.mu.Unlock()
	u.log.add("refresh")
	return nil
}

func (u *recordingUI) Record(_ context.Context, o Outcome) {
	u.mu.Lock()
	u.recorded = append(u.recorded, o)
	u.mu.Unlock()
}

func (u *recordingUI) snapshot() (notices []Notice, refreshes, recorded []Outcome) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Notice(nil), u.notices...), append([]Outcome(nil), u.refreshes...), append([]Outcome(nil), u.recorded...)
}

type fakeTicker struct {
	c       chan time.Time
	log     *eventLog
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		t.log.add("stop")
	}
}

type harness struct {
	t       *testing.T
	gw      *fakeGateway
	ui      *recordingUI
	log     *eventLog
	tickers chan *fakeTicker
	coord   *Coordinator
}

func newHarness(t *testing.T, gw *fakeGateway, settings Settings) *harness {
	t.Helper()
	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	log := &eventLog{}
	ui := &recordingUI{log: log}
	h := &harness{t: t, gw: gw, ui: ui, log: log, tickers: make(chan *fakeTicker, 4)}

	h.coord = NewCoordinator(gw, UI{Progress: ui, Notifier: ui, Refresher: ui}, metrics, zap.NewNop(),
		tracenoop.NewTracerProvider().Tracer("test"), WithSettings(settings), WithOutcomeSink(ui))
	h.coord.env.newTicker = func(time.Duration) ticker {
		ft := &fakeTicker{c: make(chan time.Time), log: log}
		h.tickers <- ft
		return ft
	}
	t.Cleanup(h.coord.Close)
	return h
}

func (h *harness) nextTicker() *fakeTicker {
	h.t.Helper()
	select {
	case ft := <-h.tickers:
		return ft
	case <-time.After(2 * time.Second):
		h.t.Fatal("flow never started polling")
		return nil
	}
}

// tick delivers n ticks, each one only after the previous was consumed.
func (h *harness) tick(ft *fakeTicker, n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		select {
		case ft.c <- time.Now():
		case <-time.After(2 * time.Second):
			h.t.Fatalf("tick %d not consumed", i+1)
		}
	}
}

func (h *harness) wait(f *Flow) Outcome {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := f.Wait(ctx)
	require.NoError(h.t, err, "flow did not finish")
	return out
}

func paymentRequest() models.PaymentRequest {
	return models.PaymentRequest{Tier: models.TierBasic, Method: models.MethodTill, PhoneNumber: "0712345678"}
}
