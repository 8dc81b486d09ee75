// Package tracing configures OpenTelemetry spans for playback and validation.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dndj/dndj/internal/config"
	"github.com/dndj/dndj/internal/log"
)

const tracerName = "github.com/dndj/dndj"

// Tracer returns the process tracer. Spans are dropped until Setup installs
// an exporter.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

// Setup installs the tracer provider selected by cfg. Stdout spans are
// written to w.
func Setup(ctx context.Context, cfg config.TracingConfig, w io.Writer) (Shutdown, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "", config.ExporterNone:
		return func(context.Context) error { return nil }, nil
	case config.ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case config.ExporterOTLP:
		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s exporter: %w", cfg.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	log.Info(log.CatServer, "Tracing enabled", "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
	return tp.Shutdown, nil
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
