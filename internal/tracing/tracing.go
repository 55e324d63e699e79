// Package tracing installs the OpenTelemetry tracer provider used for bridge
// dispatch spans.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/config"
)

// Provider is the tracer provider of the host process.
type Provider struct {
	trace.TracerProvider

	sdk *sdktrace.TracerProvider
}

// Setup builds a provider from cfg. With an endpoint it exports spans over
// OTLP and becomes the global provider; without one spans are discarded.
func Setup(ctx context.Context, cfg config.TracingConfig, version string, logger *zap.Logger) (*Provider, error) {
	if cfg.Endpoint == "" {
		logger.Info("Tracing disabled (no tracing.endpoint configured)")
		return &Provider{TracerProvider: tracenoop.NewTracerProvider()}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Protocol {
	case "grpc":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s trace exporter: %w", cfg.Protocol, err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("Tracing enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
	)

	return &Provider{TracerProvider: tp, sdk: tp}, nil
}

// Tracer returns the tracer for bridge dispatch spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer("github.com/woxQAQ/scriptbridge/internal/bridge")
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
