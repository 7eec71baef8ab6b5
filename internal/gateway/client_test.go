package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"payflow/internal/csrf"
	"payflow/internal/models"
	"payflow/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const testToken = "test-csrf-token-123"

func newTestClient(t *testing.T, srv *httptest.Server, tokens csrf.TokenSource) *Client {
	t.Helper()
	m, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return NewClient(srv.URL, tokens, m, zap.NewNop(), tracenoop.NewTracerProvider().Tracer("test"),
		WithHTTPClient(srv.Client()))
}

func TestInitiateSendsFormAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, InitiatePath, r.URL.Path)
		assert.Equal(t, testToken, r.Header.Get(csrf.HeaderName))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "pro", r.PostForm.Get("tier"))
		assert.Equal(t, "till", r.PostForm.Get("payment_type"))
		assert.Equal(t, "+254712345678", r.PostForm.Get("phone_number"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"checkout_request_id":"ws_CO_1","message":"STK push sent"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(testToken))
	resp, err := c.Initiate(context.Background(), models.PaymentRequest{
		Tier: models.TierPro, Method: models.MethodTill, PhoneNumber: "+254712345678",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
}

func TestInitiateDecodesRejectionBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"Invalid phone number"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(testToken))
	resp, err := c.Initiate(context.Background(), models.PaymentRequest{Tier: "basic", Method: "till", PhoneNumber: "1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid phone number", resp.Error)
}

func TestInitiateWithoutTokenSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(""))
	_, err := c.Initiate(context.Background(), models.PaymentRequest{Tier: "basic", Method: "till", PhoneNumber: "1"})
	assert.ErrorIs(t, err, csrf.ErrTokenMissing)

	_, err = c.ToggleAutoRenew(context.Background())
	assert.ErrorIs(t, err, csrf.ErrTokenMissing)
	assert.Zero(t, hits.Load())
}

func TestInitiateNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(testToken))
	_, err := c.Initiate(context.Background(), models.PaymentRequest{Tier: "basic", Method: "till", PhoneNumber: "1"})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get(csrf.HeaderName))
		if r.URL.Path != StatusPath+"ws_CO_1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(testToken))
	st, err := c.CheckStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, st.Status)

	_, err = c.CheckStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestToggleAutoRenew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AutoRenewPath, r.URL.Path)
		assert.Equal(t, testToken, r.Header.Get(csrf.HeaderName))
		_, _ = w.Write([]byte(`{"success":true,"auto_renew":false,"message":"Auto-renew disabled"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, csrf.StaticSource(testToken))
	resp, err := c.ToggleAutoRenew(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.AutoRenew)
	assert.False(t, *resp.AutoRenew)
	assert.Equal(t, "Auto-renew disabled", resp.Message)
}
