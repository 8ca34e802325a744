package main

import (
	"context"
	"fmt"
	"io"

	"github.com/deepaksharma/otel-tracing-bridge/internal/bridge"
	"github.com/deepaksharma/otel-tracing-bridge/internal/exporter/pdataexport"
	"github.com/deepaksharma/otel-tracing-bridge/internal/instrument"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	exporterStdout   = "stdout"
	exporterOTLP     = "otlp"
	exporterPipeline = "pipeline"

	serviceVersion = "0.1.0"
	workloadName   = "workload"
)

type options struct {
	exporter    string
	endpoint    string
	insecure    bool
	serviceName string
	verbose     bool
	bridge      bridge.Config
}

func defaultOptions() options {
	return options{
		exporter:    exporterStdout,
		endpoint:    "localhost:4317",
		insecure:    true,
		serviceName: "tracebridge",
		bridge:      bridge.DefaultConfig(),
	}
}

// run sets up the tracer provider and bridge, runs the workload and flushes
// every span before returning.
func run(ctx context.Context, opts options, out io.Writer, logger *zap.Logger) error {
	ctx = contextOrBackground(ctx)

	exp, err := newSpanExporter(ctx, opts, out, logger)
	if err != nil {
		return err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	b, err := bridge.NewBridge(component.TelemetrySettings{
		Logger:         logger,
		TracerProvider: tp,
	}, opts.bridge)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	registry := instrument.NewRegistry(logger, b)

	rootCtx, root := tp.Tracer("tracebridge").Start(ctx, "root", trace.WithNewRoot())
	runWorkload(rootCtx, registry)
	root.End()

	if err := flushAndShutdown(ctx, tp); err != nil {
		return err
	}

	logger.Info("Trace exported",
		zap.String("exporter", opts.exporter),
		zap.Int64("spans_created", b.Metrics().SpansCreated()),
		zap.Int64("events_recorded", b.Metrics().EventsRecorded()),
		zap.Int64("events_dropped", b.Metrics().EventsDropped()))
	return nil
}

// tracerProvider is the part of sdktrace.TracerProvider that run tears down
type tracerProvider interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// flushAndShutdown flushes pending spans and always shuts the provider down,
// even when the flush fails.
func flushAndShutdown(ctx context.Context, tp tracerProvider) error {
	flushErr := tp.ForceFlush(ctx)
	shutdownErr := tp.Shutdown(ctx)

	if flushErr != nil {
		return fmt.Errorf("failed to flush spans: %w", flushErr)
	}
	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", shutdownErr)
	}
	return nil
}

// runWorkload runs makeTraces on a dedicated goroutine so that its name label
// does not stick to the caller's goroutine.
func runWorkload(ctx context.Context, registry *instrument.Registry) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		makeTraces(ctx, registry)
	}()
	<-done
}

// makeTraces is the instrumented workload: one span with a field and an
// error event inside it.
func makeTraces(ctx context.Context, registry *instrument.Registry) {
	ctx = instrument.WithGoroutineName(ctx, workloadName)

	span := instrument.NewMetadata("send request", "", instrument.LevelTrace, 0)
	ctx, id := registry.Start(ctx, span, instrument.Int64("work_units", 2))
	defer registry.Close(ctx, id)

	event := instrument.NewMetadata("event", "", instrument.LevelError, 0)
	registry.Emit(ctx, event, instrument.Message("This event will be logged in the root span."))
}

func newSpanExporter(ctx context.Context, opts options, out io.Writer, logger *zap.Logger) (sdktrace.SpanExporter, error) {
	switch opts.exporter {
	case exporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil

	case exporterOTLP:
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.endpoint)}
		if opts.insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exp, nil

	case exporterPipeline:
		next, err := newJSONConsumer(out)
		if err != nil {
			return nil, err
		}
		exp, err := pdataexport.New(next, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create pipeline exporter: %w", err)
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("unknown exporter %q, expected %s, %s or %s",
			opts.exporter, exporterStdout, exporterOTLP, exporterPipeline)
	}
}

// newJSONConsumer writes each batch of traces to out as OTLP JSON, one line per batch
func newJSONConsumer(out io.Writer) (consumer.Traces, error) {
	marshaler := &ptrace.JSONMarshaler{}
	return consumer.NewTraces(func(_ context.Context, td ptrace.Traces) error {
		buf, err := marshaler.MarshalTraces(td)
		if err != nil {
			return fmt.Errorf("failed to marshal traces: %w", err)
		}
		if _, err := out.Write(append(buf, '\n')); err != nil {
			return fmt.Errorf("failed to write traces: %w", err)
		}
		return nil
	})
}
