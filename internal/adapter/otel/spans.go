package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "switchboard"

// StartTurnSpan starts a span for one inbound message turn.
func StartTurnSpan(ctx context.Context, conversationID, clientID, channel string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("client.id", clientID),
			attribute.String("channel", channel),
		),
	)
}

// StartDeliverySpan starts a span for an outbound send.
func StartDeliverySpan(ctx context.Context, channel, to string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery",
		trace.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("delivery.to", to),
		),
	)
}

// StartEscalationSpan starts a span covering escalation registration.
func StartEscalationSpan(ctx context.Context, conversationID, reason string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "escalation",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("escalation.reason", reason),
		),
	)
}
