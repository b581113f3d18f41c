// Tracing instrumentation for the engine.
package pev

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rahul/mishri-pev/internal/pev"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startRunSpan starts the span covering a whole Run call.
func startRunSpan(ctx context.Context, runID, goal string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pev.run", trace.WithAttributes(
		attribute.String("pev.run_id", runID),
		attribute.String("pev.goal", goal),
	))
}

func endRunSpan(span trace.Span, verdict VerifyResult, replans int) {
	span.SetAttributes(
		attribute.String("pev.status", string(verdict.Status)),
		attribute.Int("pev.replans", replans),
	)
	if verdict.Status == StatusFailed {
		span.SetStatus(codes.Error, verdict.Explanation)
	}
	span.End()
}

// startAttemptSpan starts a span for one plan attempt (initial or replan).
func startAttemptSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pev.attempt", trace.WithAttributes(
		attribute.Int("pev.attempt", attempt),
	))
}

func endAttemptSpan(span trace.Span, verdict VerifyResult, steps int) {
	span.SetAttributes(
		attribute.String("pev.status", string(verdict.Status)),
		attribute.Int("pev.steps", steps),
	)
	span.End()
}

// startStepSpan starts a span for a single step.
func startStepSpan(ctx context.Context, step Step) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pev.step", trace.WithAttributes(
		attribute.Int("step.index", step.Index),
		attribute.String("step.tool", step.ToolName),
	))
}

func endStepSpan(span trace.Span, res StepResult) {
	span.SetAttributes(attribute.Bool("step.success", res.Success))
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	span.End()
}
