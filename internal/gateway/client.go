package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payflow/internal/csrf"
	"payflow/internal/models"
	"payflow/internal/telemetry"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	InitiatePath  = "/initiate_subscription_payment"
	StatusPath    = "/check_payment_status/"
	AutoRenewPath = "/toggle_auto_renew"

	maxBodyBytes = 1 << 20
)

// ErrUnexpectedResponse is returned when the server answers with something
// that is not the JSON document the endpoint promises.
var ErrUnexpectedResponse = errors.New("unexpected gateway response")

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHeader adds a header sent on every request unless the request sets it.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// Client talks to the billing server endpoints behind the payment flow.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  csrf.TokenSource
	headers map[string]string
	metrics *telemetry.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewClient(baseURL string, tokens csrf.TokenSource, metrics *telemetry.Metrics, log *zap.Logger, tracer trace.Tracer, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
		headers: map[string]string{
			"Accept": "application/json",
		},
		metrics: metrics,
		log:     log,
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Initiate(ctx context.Context, req models.PaymentRequest) (*models.InitiateResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Gateway.Initiate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("payment.tier", string(req.Tier)),
			attribute.String("payment.method", string(req.Method)),
		),
	)
	defer span.End()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "csrf token unavailable")
		return nil, err
	}

	form := url.Values{}
	form.Set("tier", string(req.Tier))
	form.Set("payment_type", string(req.Method))
	form.Set("phone_number", req.PhoneNumber)

	httpReq, err := c.newRequest(ctx, http.MethodPost, InitiatePath, strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set(csrf.HeaderName, token)

	var out models.InitiateResponse
	if err := c.do(ctx, httpReq, "initiate", false, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("payment.success", out.Success),
		attribute.String("payment.checkout_request_id", out.CheckoutRequestID),
	)
	span.SetStatus(codes.Ok, "")
	return &out, nil
}

func (c *Client) CheckStatus(ctx context.Context, checkoutRequestID string) (*models.StatusResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Gateway.CheckStatus",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.checkout_request_id", checkoutRequestID)),
	)
	defer span.End()

	httpReq, err := c.newRequest(ctx, http.MethodGet, StatusPath+url.PathEscape(checkoutRequestID), nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var out models.StatusResponse
	if err := c.do(ctx, httpReq, "check_status", true, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.status", string(out.Status)))
	span.SetStatus(codes.Ok, "")
	return &out, nil
}

func (c *Client) ToggleAutoRenew(ctx context.Context) (*models.ToggleResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Gateway.ToggleAutoRenew",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "csrf token unavailable")
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, AutoRenewPath, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(csrf.HeaderName, token)

	var out models.ToggleResponse
	if err := c.do(ctx, httpReq, "toggle_auto_renew", false, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", path, err)
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// do sends req and decodes the JSON body into out. The billing server
// reports rejected mutations as a JSON body with a 4xx status, so unless
// strict is set a decodable body is accepted whatever the status.
func (c *Client) do(ctx context.Context, req *http.Request, endpoint string, strict bool, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(ctx, endpoint, "error")
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.record(ctx, endpoint, strconv.Itoa(resp.StatusCode))

	if strict && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("%w: %s returned %d", ErrUnexpectedResponse, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		c.log.Debug("undecodable gateway response",
			zap.String("endpoint", endpoint),
			zap.Int("http_status", resp.StatusCode),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s returned %d: %v", ErrUnexpectedResponse, endpoint, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) record(ctx context.Context, endpoint, status string) {
	c.metrics.GatewayCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}
