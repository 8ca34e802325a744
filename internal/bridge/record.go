package bridge

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// recordKey is the extension key under which a span's SpanRecord is stored
type recordKey struct{}

// propertySink receives textual properties from the field visitors
type propertySink interface {
	setProperty(key, value string)
}

// SpanRecord pairs the OpenTelemetry span created for a host span with every
// property recorded on it. Keys may repeat; each occurrence is kept in order.
type SpanRecord struct {
	span       trace.Span
	properties []attribute.KeyValue
}

var _ propertySink = (*SpanRecord)(nil)

func newSpanRecord(span trace.Span) *SpanRecord {
	return &SpanRecord{
		span:       span,
		properties: make([]attribute.KeyValue, 0, 8),
	}
}

// Span returns the OpenTelemetry span.
func (r *SpanRecord) Span() trace.Span {
	return r.span
}

// Properties returns a copy of the recorded properties in recording order.
func (r *SpanRecord) Properties() []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(r.properties))
	copy(out, r.properties)
	return out
}

// setProperty appends the property and forwards it to the span.
func (r *SpanRecord) setProperty(key, value string) {
	kv := attribute.String(key, value)
	r.properties = append(r.properties, kv)
	r.span.SetAttributes(kv)
}

// addEvent attaches a fully built event to the span.
func (r *SpanRecord) addEvent(ev *Event) {
	r.span.AddEvent(ev.Name, trace.WithAttributes(ev.Properties...))
}

// Event is built from one host event notification and attached to the
// owning span's record.
type Event struct {
	Name       string
	Properties []attribute.KeyValue
}

var _ propertySink = (*Event)(nil)

func (e *Event) setProperty(key, value string) {
	e.Properties = append(e.Properties, attribute.String(key, value))
}
