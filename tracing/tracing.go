// Package tracing provides the OpenTelemetry tracer provider shared by
// the kernel (C2) and resource (C3) clients, exporting spans around each
// suspension point (gateway round trip, websocket wait, HTTP request) via
// OTLP/gRPC. Grounded on the teacher's declared-but-unwired
// go.opentelemetry.io/* dependency block.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracer is the one shared tracer used by kernel and resource client
// spans; its name identifies this module in exported traces.
var Tracer = otel.Tracer("github.com/i-dream-of-ai/ipybox")

// Setup points the global TracerProvider at an OTLP/gRPC collector and
// returns a shutdown func to flush and close the exporter. When endpoint
// is empty, tracing stays a no-op (the default global provider), so
// callers can leave it unconfigured without error handling.
func Setup(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
