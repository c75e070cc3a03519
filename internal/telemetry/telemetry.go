// Package telemetry wires the OTLP trace/metric/log providers the way
// common/mopentelemetry does, adapted to one Provider value instead of
// a package-global Telemetry. Init still registers its providers as
// otel's process globals, so the last Init call in a process wins.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otellog "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config binds the OTLP collector a process exports to, env-tag bound
// the same way every other config struct in this module is.
type Config struct {
	ServiceName       string `env:"OTEL_SERVICE_NAME"`
	ServiceVersion    string `env:"OTEL_SERVICE_VERSION"`
	DeploymentEnv     string `env:"OTEL_DEPLOYMENT_ENVIRONMENT"`
	CollectorEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Enabled           bool   `env:"OTEL_ENABLED"`
}

// Provider holds one process's trace/metric/log providers and knows how
// to shut all three down in dependency order.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	shutdown func(context.Context) error
}

// Noop returns a Provider whose Tracer/Meter calls are safe but produce
// no spans or metrics — the default when Config.Enabled is false, so a
// one-shot CLI invocation doesn't pay exporter dial cost for nothing.
func Noop() *Provider {
	return &Provider{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  sdkmetric.NewMeterProvider(),
		shutdown:       func(context.Context) error { return nil },
	}
}

// Init dials the configured OTLP collector over gRPC and builds the
// trace/metric/log providers, registering them as the process globals
// (spec components reach them via otel.Tracer/otel.Meter the normal way).
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	resource, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.DeploymentEnv),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	var traceExp *otlptrace.Exporter

	traceExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building trace exporter: %w", err)
	}

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building metric exporter: %w", err)
	}

	logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(cfg.CollectorEndpoint), otlploggrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building log exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(resource))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(resource), sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	lp := sdklog.NewLoggerProvider(sdklog.WithResource(resource), sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otellog.SetLoggerProvider(lp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		shutdown: func(ctx context.Context) error {
			for _, fn := range []func(context.Context) error{traceExp.Shutdown, metricExp.Shutdown, logExp.Shutdown, tp.Shutdown, mp.Shutdown, lp.Shutdown} {
				if err := fn(ctx); err != nil {
					return err
				}
			}

			return nil
		},
	}, nil
}

// Shutdown flushes and closes every exporter/provider in dependency order.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// Tracer returns a named tracer from this provider, the way a component
// would call otel.Tracer(name) against the process-global provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.TracerProvider.Tracer(name)
}

// Meter returns a named meter from this provider.
func (p *Provider) Meter(name string) metric.Meter {
	return p.MeterProvider.Meter(name)
}
