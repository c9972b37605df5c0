package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pzverkov/sshkex/internal/config"
	"github.com/pzverkov/sshkex/pkg/metrics"
	"github.com/pzverkov/sshkex/pkg/version"
)

const tracerShutdownTimeout = 5 * time.Second

type observability struct {
	logger    *metrics.Logger
	collector *metrics.Collector
	tracer    metrics.Tracer
	shutdown  func()
}

func setupObservability(ctx context.Context, f *config.File) (*observability, error) {
	level, err := parseLogLevel(f.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := parseLogFormat(f.Log.Format)
	if err != nil {
		return nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "sshkex"}),
	)
	metrics.SetLogger(logger)

	collector := metrics.NewCollector(metrics.Labels{"service": "sshkex"})
	metrics.SetGlobal(collector)

	obs := &observability{
		logger:    logger,
		collector: collector,
		shutdown:  func() {},
	}

	switch strings.ToLower(f.Tracing) {
	case "", config.TracingNone:
		obs.tracer = metrics.NoOpTracer{}
	case config.TracingSimple:
		tracer := metrics.NewSimpleTracer()
		obs.tracer = tracer
		obs.shutdown = func() { logSpans(logger, tracer) }
	case config.TracingOTel:
		provider, err := newTracerProvider(ctx, f.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(provider)
		obs.tracer = metrics.NewOTelTracer("sshkex")
		obs.shutdown = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", metrics.Fields{"error": err.Error()})
			}
		}
	default:
		return nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", f.Tracing)
	}
	metrics.SetTracer(obs.tracer)

	return obs, nil
}

// newTracerProvider exports spans over OTLP/HTTP. An empty endpoint defers
// to the OTEL_EXPORTER_OTLP_* environment variables.
func newTracerProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "sshkex"),
		attribute.String("service.version", version.String()),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// logSpans writes the spans recorded by an in-memory tracer at debug level.
func logSpans(logger *metrics.Logger, tracer *metrics.SimpleTracer) {
	for _, span := range tracer.Spans() {
		fields := metrics.Fields{
			"trace_id": span.TraceID,
			"span_id":  span.SpanID,
			"duration": span.Duration.String(),
		}
		if span.ParentID != "" {
			fields["parent_id"] = span.ParentID
		}
		if span.Error != nil {
			fields["error"] = span.Error.Error()
		}
		logger.Debug(span.Name, fields)
	}
}

func parseLogLevel(level string) (metrics.Level, error) {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return metrics.LevelDebug, nil
	case "info", "":
		return metrics.LevelInfo, nil
	case "warn", "warning":
		return metrics.LevelWarn, nil
	case "error":
		return metrics.LevelError, nil
	case "silent":
		return metrics.LevelSilent, nil
	default:
		return metrics.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (metrics.Format, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return metrics.FormatText, nil
	case "json":
		return metrics.FormatJSON, nil
	default:
		return metrics.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}
