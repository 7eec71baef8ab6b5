package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Initiations   metric.Int64Counter
	PollAttempts  metric.Int64Counter
	Outcomes      metric.Int64Counter
	FlowDuration  metric.Float64Histogram
	GatewayCalls  metric.Int64Counter
	AutoRenew     metric.Int64Counter
	EventsSent    metric.Int64Counter
	EventsHandled metric.Int64Counter
	SimCheckouts  metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	initiations, err := meter.Int64Counter("payflow_initiations_total",
		metric.WithDescription("Payment initiation requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	polls, err := meter.Int64Counter("payflow_poll_attempts_total",
		metric.WithDescription("Payment status checks by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter("payflow_outcomes_total",
		metric.WithDescription("Payment flows that reached a terminal state"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("payflow_flow_duration_seconds",
		metric.WithDescription("Time from initiation to terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	gatewayCalls, err := meter.Int64Counter("gateway_requests_total",
		metric.WithDescription("HTTP requests sent to the billing server"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	autoRenew, err := meter.Int64Counter("autorenew_toggles_total",
		metric.WithDescription("Auto-renew toggles by result"),
		metric.WithUnit("{toggle}"),
	)
	if err != nil {
		return nil, err
	}

	sent, err := meter.Int64Counter("events_published_total",
		metric.WithDescription("Flow events published to Kafka"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	handled, err := meter.Int64Counter("events_consumed_total",
		metric.WithDescription("Flow events consumed from Kafka"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	checkouts, err := meter.Int64Counter("gatewaysim_checkouts_total",
		metric.WithDescription("Checkouts settled by the gateway simulator"),
		metric.WithUnit("{checkout}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Initiations:   initiations,
		PollAttempts:  polls,
		Outcomes:      outcomes,
		FlowDuration:  duration,
		GatewayCalls:  gatewayCalls,
		AutoRenew:     autoRenew,
		EventsSent:    sent,
		EventsHandled: handled,
		SimCheckouts:  checkouts,
	}, nil
}
