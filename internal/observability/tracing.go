package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name of tickflow spans.
const TracerName = "github.com/roach88/tickflow"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled bool

	// Writer receives one JSON document per span. Required when Enabled.
	Writer io.Writer

	// Program is recorded as a resource attribute.
	Program string
}

// InitTracing installs a tracer provider and returns a tracer for the
// runner plus a shutdown function that flushes spans. A disabled config
// installs a noop provider.
//
// Spans are exported synchronously so that a run's trace is complete as
// soon as the run returns.
func InitTracing(ctx context.Context, cfg TracingConfig) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		slog.Debug("tracing disabled; using noop tracer provider")
		return tp.Tracer(TracerName), func(context.Context) error { return nil }, nil
	}
	if cfg.Writer == nil {
		return nil, nil, fmt.Errorf("tracing enabled without a writer")
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Writer),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "tickflow"),
			attribute.String("tickflow.program", cfg.Program),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("tracing enabled", "exporter", "stdout", "program", cfg.Program)
	return tp.Tracer(TracerName), tp.Shutdown, nil
}

// ShutdownWithTimeout invokes the provided shutdown function with a bounded
// timeout, logging errors in the shutdown path.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("tracing shutdown failed", "error", err)
	}
}
