// Package tracing wires the process into OpenTelemetry: a TracerProvider is
// installed as the global provider at startup, and the HTTP Surface starts
// one span per request under it. No exporter is registered by default —
// spans are created and ended in-process — so operators opt in to shipping
// them by attaching a processor from their preferred otel/exporters package
// at Init call sites, the same build-tag-gated opt-in the host tool uses for
// its own OTLP export.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Init installs an always-sampling TracerProvider as the global provider and
// returns a shutdown func to flush and release it on exit. serviceName is not
// attached to the provider or to its spans.
func Init(serviceName string) (shutdown func(context.Context) error, err error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer off the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a child span named name under ctx's tracer.
func StartSpan(ctx context.Context, tracerName, name string) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, name)
}

// RecordError marks span as failed and attaches err, mirroring the
// record-then-wrap idiom used everywhere else error context is added.
func RecordError(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w", err)
}
