package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pageforge"

// StartRoundSpan starts a span for one generation round of a task.
func StartRoundSpan(ctx context.Context, taskID string, round int, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "round",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.Int("task.round", round),
			attribute.String("task.mode", mode),
		),
	)
}

// StartGenerateSpan starts a span for the generation backend call.
func StartGenerateSpan(ctx context.Context, backend string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithAttributes(
			attribute.String("generator.backend", backend),
		),
	)
}

// StartPublishSpan starts a span for the publish backend calls.
func StartPublishSpan(ctx context.Context, provider, repo string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "publish",
		trace.WithAttributes(
			attribute.String("publisher.provider", provider),
			attribute.String("publisher.repo", repo),
		),
	)
}
