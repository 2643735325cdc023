// Package telemetry bootstraps OpenTelemetry tracing and metrics, adapted
// from the teacher's go-core/telemetry package and discovery-service's
// cmd/api/main.go wiring.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the tracer and meter providers so callers can defer a
// single Shutdown.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// Shutdown flushes and closes both providers. Safe to call even if Init
// returned a no-op set (the zero-value providers are nil and skipped).
func (p *Providers) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.Tracer != nil {
		_ = p.Tracer.Shutdown(ctx)
	}
	if p.Meter != nil {
		_ = p.Meter.Shutdown(ctx)
	}
}

// Init bootstraps OTel tracing and metrics against endpoint (e.g.
// "otel-collector:4317"). When endpoint is empty it returns a nil
// *Providers and the caller should use the no-op global providers OTel
// installs by default.
func Init(ctx context.Context, serviceName, endpoint string) (*Providers, error) {
	if endpoint == "" {
		return nil, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return &Providers{Tracer: tp, Meter: mp}, nil
}

// Tracer returns a named tracer off the globally installed provider —
// a no-op tracer if Init was never called.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
