// Package bridge forwards spans and events from an instrument.Registry to
// OpenTelemetry, keeping parent/child structure and field data.
package bridge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/deepaksharma/otel-tracing-bridge/internal/instrument"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ScopeName is the instrumentation scope of every span the bridge starts.
const ScopeName = "github.com/deepaksharma/otel-tracing-bridge"

const (
	propertyFilepath   = "code.filepath"
	propertyNamespace  = "code.namespace"
	propertyLineno     = "code.lineno"
	propertyThreadID   = "thread.id"
	propertyThreadName = "thread.name"
	propertyLevel      = "level"
	propertyTarget     = "target"
)

// Bridge is an instrument.Layer that re-creates host spans and events as
// OpenTelemetry spans and span events.
//
// The bridge keeps no span table of its own: each span's SpanRecord lives in
// the host span's extensions, and the registry serializes access to it.
type Bridge struct {
	tracer  trace.Tracer
	config  Config
	logger  *zap.Logger
	metrics *MetricsManager
}

var _ instrument.Layer = (*Bridge)(nil)

// NewBridge creates a bridge that starts spans on set.TracerProvider and
// reports its counters on set.MeterProvider. Nil providers fall back to the
// global tracer provider and a no-op meter provider.
func NewBridge(set component.TelemetrySettings, cfg Config) (*Bridge, error) {
	logger := set.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tp := set.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	mp := set.MeterProvider
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	metrics := NewMetricsManager(mp.Meter(ScopeName))
	if err := metrics.RegisterMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register bridge metrics: %w", err)
	}

	b := &Bridge{
		tracer:  tp.Tracer(ScopeName),
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	logger.Info("OpenTelemetry bridge created",
		zap.Bool("include_location", cfg.IncludeLocation),
		zap.Bool("include_threads", cfg.IncludeThreads),
		zap.Bool("include_level", cfg.IncludeLevel))

	return b, nil
}

// Config returns the configuration the bridge was created with.
func (b *Bridge) Config() Config {
	return b.config
}

// Metrics returns the bridge's counters.
func (b *Bridge) Metrics() *MetricsManager {
	return b.metrics
}

// OnNewSpan starts the OpenTelemetry span for a new host span, enriches it
// and stores its SpanRecord in the span's extensions.
func (b *Bridge) OnNewSpan(ctx context.Context, attrs *instrument.Attributes, id instrument.ID, lookup instrument.Lookup) {
	span, ok := lookup.Span(id)
	if !ok {
		panic(fmt.Sprintf("bridge: span %d not found, this is a bug", id))
	}

	rec := newSpanRecord(b.newOTelSpan(ctx, attrs, lookup))

	if b.config.IncludeLocation {
		setLocation(rec, attrs.Metadata)
	}

	if b.config.IncludeThreads {
		rec.setProperty(propertyThreadID, goroutineID())
		if name, ok := instrument.GoroutineName(ctx); ok {
			rec.setProperty(propertyThreadName, name)
		}
	}

	if b.config.IncludeLevel {
		rec.setProperty(propertyLevel, attrs.Metadata.Level.String())
	}

	attrs.Fields.Record(newSpanVisitor(rec))

	span.WithExtensions(func(ext *instrument.Extensions) {
		ext.Insert(recordKey{}, rec)
	})
	b.metrics.spansCreated.Inc()
}

// OnRecord adds newly recorded fields to the span's record. Spans without a
// record, e.g. created before the bridge was attached, are skipped.
func (b *Bridge) OnRecord(_ context.Context, id instrument.ID, values instrument.Fields, lookup instrument.Lookup) {
	span, ok := lookup.Span(id)
	if !ok {
		panic(fmt.Sprintf("bridge: span %d not found, this is a bug", id))
	}

	span.WithExtensions(func(ext *instrument.Extensions) {
		rec, ok := ext.Get(recordKey{})
		if !ok {
			b.metrics.recordsMissed.Inc()
			return
		}
		values.Record(newSpanVisitor(rec.(*SpanRecord)))
	})
}

// OnEvent attaches the event to the bridged span that owns it. Events with
// no owning span, or whose owner was never bridged, are dropped.
func (b *Bridge) OnEvent(ctx context.Context, event *instrument.Event, lookup instrument.Lookup) {
	owner, ok := owningSpan(ctx, event, lookup)
	if !ok {
		b.metrics.eventsDropped.Inc()
		b.logger.Debug("Dropping event outside of any span", zap.String("event", event.Metadata.Name))
		return
	}

	owner.WithExtensions(func(ext *instrument.Extensions) {
		rec, ok := ext.Get(recordKey{})
		if !ok {
			b.metrics.eventsDropped.Inc()
			b.logger.Debug("Dropping event for unbridged span",
				zap.String("event", event.Metadata.Name),
				zap.Uint64("span_id", uint64(owner.ID())))
			return
		}
		rec.(*SpanRecord).addEvent(b.buildEvent(event))
		b.metrics.eventsRecorded.Inc()
	})
}

// OnClose ends the OpenTelemetry span and releases its record.
func (b *Bridge) OnClose(_ context.Context, id instrument.ID, lookup instrument.Lookup) {
	span, ok := lookup.Span(id)
	if !ok {
		return
	}

	span.WithExtensions(func(ext *instrument.Extensions) {
		if rec, ok := ext.Remove(recordKey{}); ok {
			rec.(*SpanRecord).Span().End()
		}
	})
}

// buildEvent resolves the event's name and accumulates its properties.
// level and target always come first, then location, then fields.
func (b *Bridge) buildEvent(event *instrument.Event) *Event {
	meta := event.Metadata

	finder := &eventNameFinder{}
	event.Fields.Record(finder)

	name := meta.Name
	if finder.found {
		name = finder.name
	}

	ev := &Event{Name: name}
	ev.setProperty(propertyLevel, meta.Level.String())
	ev.setProperty(propertyTarget, meta.Target)

	if b.config.IncludeLocation {
		setLocation(ev, meta)
	}

	event.Fields.Record(newEventVisitor(ev))
	return ev
}

// owningSpan prefers an explicit parent and falls back to the current span
// for contextual events.
func owningSpan(ctx context.Context, event *instrument.Event, lookup instrument.Lookup) (*instrument.SpanRef, bool) {
	if id, ok := event.Parent.ID(); ok {
		if span, ok := lookup.Span(id); ok {
			return span, true
		}
	}
	if event.Parent.IsContextual() {
		return lookup.Current(ctx)
	}
	return nil, false
}

// setLocation records whichever call site properties are known.
func setLocation(sink propertySink, meta *instrument.Metadata) {
	if meta.File != "" {
		sink.setProperty(propertyFilepath, meta.File)
	}
	if meta.ModulePath != "" {
		sink.setProperty(propertyNamespace, meta.ModulePath)
	}
	if meta.Line != 0 {
		sink.setProperty(propertyLineno, strconv.Itoa(meta.Line))
	}
}

// PropertiesOf returns the properties recorded for a bridged span.
func PropertiesOf(span *instrument.SpanRef) ([]attribute.KeyValue, bool) {
	var props []attribute.KeyValue
	found := false
	span.WithExtensions(func(ext *instrument.Extensions) {
		if rec, ok := ext.Get(recordKey{}); ok {
			props = rec.(*SpanRecord).Properties()
			found = true
		}
	})
	return props, found
}
