// Package telemetry configures the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opensource-finance/covenant/internal/domain"
)

// ErrUnknownExporter is returned for an unsupported exporter type.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

type options struct {
	writer io.Writer
}

// Option customizes Init.
type Option func(*options)

// WithWriter sends stdout spans to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// Init installs a global tracer provider and the W3C trace context
// propagator. With tracing disabled only the propagator is installed and
// the returned Shutdown is a no-op.
func Init(ctx context.Context, cfg domain.TracingConfig, version string, opts ...Option) (Shutdown, error) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	noop := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.ExporterType == "none" {
		return noop, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.ExporterType {
	case "stdout", "":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(o.writer))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.ExporterType)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "covenant"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
