package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const metricInterval = 15 * time.Second

// Provider holds the OTel trace and metric providers for graceful shutdown.
type Provider struct {
	tp   *sdktrace.TracerProvider
	mp   *sdkmetric.MeterProvider
	name string
}

// Init creates and registers OTel trace and metric providers with OTLP gRPC
// exporters. Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_*
// environment variables, which the exporters read themselves.
func Init(ctx context.Context, serviceName, version string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, res)
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Provider{tp: tp, mp: mp, name: serviceName}, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// Shutdown flushes the last partial interval.
func newMeterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	), nil
}

// Tracer returns a tracer from the registered provider, or a noop tracer
// when p is nil (telemetry disabled).
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return NoopTracer()
	}
	return p.tp.Tracer(p.name)
}

// Instruments returns metric instruments bound to the registered provider,
// or noop instruments when p is nil.
func (p *Provider) Instruments() *Instruments {
	if p == nil || p.mp == nil {
		return NoopInstruments()
	}
	return newInstrumentsFromMeter(p.mp.Meter(meterName))
}

// Shutdown flushes pending spans and metrics, then stops both providers.
// Errors from either provider are joined.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NoopTracer returns a tracer that does nothing (for when OTel is disabled).
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
