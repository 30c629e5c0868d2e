// Package tracing provides an optional OpenTelemetry tracing hook.
// Tracing is an external collaborator, not part of the dispatch core's
// correctness surface; this stays thin and is never consulted by
// dispatch decisions.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Init installs a TracerProvider for serviceName that samples every span
// (AlwaysSample) but registers no span processor or exporter, so spans
// are not sent anywhere and no live collector is required. Returns a
// shutdown func.
func Init(serviceName string) (func(context.Context) error, error) {
	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the global provider, a no-op before
// Init is called.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
