// Package telemetry sets up OpenTelemetry tracing for inbound requests and
// calls to the backend API.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"usermgmt/console/internal/config"
)

// Shutdowner flushes and stops a tracer provider.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

type noopShutdown struct{}

func (noopShutdown) Shutdown(context.Context) error { return nil }

// Init installs the global tracer provider and propagator. With tracing
// disabled it installs nothing and returns a no-op.
func Init(ctx context.Context, cfg config.TracingConfig, environment string) (Shutdowner, error) {
	if !cfg.Enabled {
		return noopShutdown{}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}
