package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// readerInterval is how often the periodic reader pushes to the collector.
const readerInterval = 10 * time.Second

// InitProvider registers a real OTLP-exporting MeterProvider as the global
// otel meter provider, so every Sink built by NewOtel records against a
// working backend instead of the package default no-op implementation. If
// endpoint is empty, InitProvider is a no-op: the global meter stays no-op
// and the returned shutdown func does nothing.
func InitProvider(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: build resource: %w", err)
	}

	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("metrics: build otlp exporter: %w", err)
	}

	reader := metric.NewPeriodicReader(exp, metric.WithInterval(readerInterval))
	mp := metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}, nil
}
