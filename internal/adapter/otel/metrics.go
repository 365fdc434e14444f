package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "switchboard"

// Metrics holds the pipeline metric instruments.
type Metrics struct {
	MessagesProcessed  metric.Int64Counter
	MessagesThrottled  metric.Int64Counter
	EscalationsCreated metric.Int64Counter
	TakeoversStarted   metric.Int64Counter
	TurnDuration       metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesProcessed, err = meter.Int64Counter("switchboard.messages.processed",
		metric.WithDescription("Inbound messages run through the pipeline"))
	if err != nil {
		return nil, err
	}

	m.MessagesThrottled, err = meter.Int64Counter("switchboard.messages.throttled",
		metric.WithDescription("Inbound messages rejected by the rate limiter"))
	if err != nil {
		return nil, err
	}

	m.EscalationsCreated, err = meter.Int64Counter("switchboard.escalations.created",
		metric.WithDescription("Escalations registered for human attention"))
	if err != nil {
		return nil, err
	}

	m.TakeoversStarted, err = meter.Int64Counter("switchboard.takeovers.started",
		metric.WithDescription("Agent takeover sessions started"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("switchboard.turn.duration_seconds",
		metric.WithDescription("End-to-end pipeline latency per inbound message"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
