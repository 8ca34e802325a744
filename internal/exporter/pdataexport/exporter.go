// Package pdataexport hands spans finished by the OpenTelemetry SDK to a
// collector pipeline as pdata traces, without a network hop.
package pdataexport

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrShutdown is returned by ExportSpans once the exporter has been shut down.
var ErrShutdown = errors.New("pdata exporter is shut down")

// Exporter is an sdktrace.SpanExporter that forwards spans to a consumer.Traces.
type Exporter struct {
	next    consumer.Traces
	logger  *zap.Logger
	stopped *atomic.Bool
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// New creates an exporter that sends every exported batch to next.
func New(next consumer.Traces, logger *zap.Logger) (*Exporter, error) {
	if next == nil {
		return nil, errors.New("next consumer must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		next:    next,
		logger:  logger,
		stopped: atomic.NewBool(false),
	}, nil
}

// ExportSpans converts spans to pdata and passes them to the next consumer.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return ErrShutdown
	}
	if len(spans) == 0 {
		return nil
	}

	td := ConvertSpans(spans)
	if err := e.next.ConsumeTraces(ctx, td); err != nil {
		return fmt.Errorf("failed to consume %d spans: %w", len(spans), err)
	}

	e.logger.Debug("Exported spans to pipeline", zap.Int("span_count", td.SpanCount()))
	return nil
}

// Shutdown stops the exporter. Later exports fail with ErrShutdown.
func (e *Exporter) Shutdown(context.Context) error {
	e.stopped.Store(true)
	return nil
}

// scopeKey identifies an instrumentation scope within a resource
type scopeKey struct {
	name      string
	version   string
	schemaURL string
	attrs     attribute.Distinct
}

func newScopeKey(scope instrumentation.Scope) scopeKey {
	return scopeKey{
		name:      scope.Name,
		version:   scope.Version,
		schemaURL: scope.SchemaURL,
		attrs:     scope.Attributes.Equivalent(),
	}
}

// resourceGroup is one ResourceSpans and the ScopeSpans already added to it
type resourceGroup struct {
	rs     ptrace.ResourceSpans
	scopes map[scopeKey]ptrace.ScopeSpans
}

// ConvertSpans builds pdata traces from SDK spans. Spans sharing a resource
// and instrumentation scope end up in the same ScopeSpans, in input order.
func ConvertSpans(spans []sdktrace.ReadOnlySpan) ptrace.Traces {
	td := ptrace.NewTraces()
	groups := make(map[attribute.Distinct]*resourceGroup)

	for _, s := range spans {
		res := s.Resource()
		group, ok := groups[res.Equivalent()]
		if !ok {
			rs := td.ResourceSpans().AppendEmpty()
			rs.SetSchemaUrl(res.SchemaURL())
			putAttributes(rs.Resource().Attributes(), res.Attributes())
			group = &resourceGroup{rs: rs, scopes: make(map[scopeKey]ptrace.ScopeSpans)}
			groups[res.Equivalent()] = group
		}

		scope := s.InstrumentationScope()
		key := newScopeKey(scope)
		ss, ok := group.scopes[key]
		if !ok {
			ss = group.rs.ScopeSpans().AppendEmpty()
			ss.SetSchemaUrl(scope.SchemaURL)
			ss.Scope().SetName(scope.Name)
			ss.Scope().SetVersion(scope.Version)
			putAttributes(ss.Scope().Attributes(), scope.Attributes.ToSlice())
			group.scopes[key] = ss
		}

		convertSpan(s, ss.Spans().AppendEmpty())
	}

	return td
}

func convertSpan(s sdktrace.ReadOnlySpan, dest ptrace.Span) {
	sc := s.SpanContext()
	dest.SetTraceID(pcommon.TraceID(sc.TraceID()))
	dest.SetSpanID(pcommon.SpanID(sc.SpanID()))
	dest.SetFlags(uint32(sc.TraceFlags()))
	dest.TraceState().FromRaw(sc.TraceState().String())

	if parent := s.Parent(); parent.IsValid() {
		dest.SetParentSpanID(pcommon.SpanID(parent.SpanID()))
	}

	dest.SetName(s.Name())
	dest.SetKind(convertKind(s.SpanKind()))
	dest.SetStartTimestamp(pcommon.NewTimestampFromTime(s.StartTime()))
	dest.SetEndTimestamp(pcommon.NewTimestampFromTime(s.EndTime()))

	putAttributes(dest.Attributes(), s.Attributes())
	dest.SetDroppedAttributesCount(uint32(s.DroppedAttributes()))

	for _, ev := range s.Events() {
		event := dest.Events().AppendEmpty()
		event.SetName(ev.Name)
		event.SetTimestamp(pcommon.NewTimestampFromTime(ev.Time))
		putAttributes(event.Attributes(), ev.Attributes)
		event.SetDroppedAttributesCount(uint32(ev.DroppedAttributeCount))
	}
	dest.SetDroppedEventsCount(uint32(s.DroppedEvents()))

	for _, l := range s.Links() {
		link := dest.Links().AppendEmpty()
		link.SetTraceID(pcommon.TraceID(l.SpanContext.TraceID()))
		link.SetSpanID(pcommon.SpanID(l.SpanContext.SpanID()))
		link.TraceState().FromRaw(l.SpanContext.TraceState().String())
		putAttributes(link.Attributes(), l.Attributes)
		link.SetDroppedAttributesCount(uint32(l.DroppedAttributeCount))
	}
	dest.SetDroppedLinksCount(uint32(s.DroppedLinks()))

	status := s.Status()
	dest.Status().SetCode(convertStatusCode(status.Code))
	dest.Status().SetMessage(status.Description)
}

func convertKind(kind trace.SpanKind) ptrace.SpanKind {
	switch kind {
	case trace.SpanKindInternal:
		return ptrace.SpanKindInternal
	case trace.SpanKindServer:
		return ptrace.SpanKindServer
	case trace.SpanKindClient:
		return ptrace.SpanKindClient
	case trace.SpanKindProducer:
		return ptrace.SpanKindProducer
	case trace.SpanKindConsumer:
		return ptrace.SpanKindConsumer
	default:
		return ptrace.SpanKindUnspecified
	}
}

func convertStatusCode(code codes.Code) ptrace.StatusCode {
	switch code {
	case codes.Ok:
		return ptrace.StatusCodeOk
	case codes.Error:
		return ptrace.StatusCodeError
	default:
		return ptrace.StatusCodeUnset
	}
}

// putAttributes copies attributes into a pdata map. A repeated key keeps its
// last value.
func putAttributes(dest pcommon.Map, attrs []attribute.KeyValue) {
	dest.EnsureCapacity(len(attrs))
	for _, kv := range attrs {
		key := string(kv.Key)
		switch kv.Value.Type() {
		case attribute.BOOL:
			dest.PutBool(key, kv.Value.AsBool())
		case attribute.INT64:
			dest.PutInt(key, kv.Value.AsInt64())
		case attribute.FLOAT64:
			dest.PutDouble(key, kv.Value.AsFloat64())
		case attribute.STRING:
			dest.PutStr(key, kv.Value.AsString())
		case attribute.BOOLSLICE:
			s := dest.PutEmptySlice(key)
			for _, v := range kv.Value.AsBoolSlice() {
				s.AppendEmpty().SetBool(v)
			}
		case attribute.INT64SLICE:
			s := dest.PutEmptySlice(key)
			for _, v := range kv.Value.AsInt64Slice() {
				s.AppendEmpty().SetInt(v)
			}
		case attribute.FLOAT64SLICE:
			s := dest.PutEmptySlice(key)
			for _, v := range kv.Value.AsFloat64Slice() {
				s.AppendEmpty().SetDouble(v)
			}
		case attribute.STRINGSLICE:
			s := dest.PutEmptySlice(key)
			for _, v := range kv.Value.AsStringSlice() {
				s.AppendEmpty().SetStr(v)
			}
		default:
			dest.PutStr(key, kv.Value.Emit())
		}
	}
}
