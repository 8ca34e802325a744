package bridge

import (
	"context"

	"github.com/deepaksharma/otel-tracing-bridge/internal/instrument"
	"go.opentelemetry.io/otel/trace"
)

// newOTelSpan starts the OpenTelemetry span for a new host span, choosing
// its parent in priority order:
//  1. an explicit parent that resolves to a bridged span
//  2. for contextual spans (or explicit parents this bridge cannot see): the
//     host's current span if bridged, then an OpenTelemetry span already in
//     ctx, then a new root
//  3. for explicit roots: always a new root
func (b *Bridge) newOTelSpan(ctx context.Context, attrs *instrument.Attributes, lookup instrument.Lookup) trace.Span {
	name := attrs.Metadata.Name

	if id, ok := attrs.Parent.ID(); ok {
		// The parent can be invisible to this layer, or predate it. Either
		// way it is treated as if no explicit parent had been declared.
		if span, ok := lookup.Span(id); ok {
			if parent, ok := recordOf(span); ok {
				return b.startChild(ctx, name, parent)
			}
		}
		return b.contextualSpan(ctx, name, lookup)
	}

	if attrs.Parent.IsRoot() {
		return b.startRoot(ctx, name)
	}

	return b.contextualSpan(ctx, name, lookup)
}

func (b *Bridge) contextualSpan(ctx context.Context, name string, lookup instrument.Lookup) trace.Span {
	if current, ok := lookup.Current(ctx); ok {
		if parent, ok := recordOf(current); ok {
			return b.startChild(ctx, name, parent)
		}
	}

	if trace.SpanContextFromContext(ctx).IsValid() {
		return b.startWithLocalParent(ctx, name)
	}

	return b.startRoot(ctx, name)
}

// startChild starts a span under an explicit parent handle, ignoring any span in ctx.
func (b *Bridge) startChild(ctx context.Context, name string, parent trace.Span) trace.Span {
	_, span := b.tracer.Start(trace.ContextWithSpan(ctx, parent), name)
	return span
}

// startWithLocalParent starts a span under the OpenTelemetry span carried by
// ctx, which was started outside the host framework.
func (b *Bridge) startWithLocalParent(ctx context.Context, name string) trace.Span {
	_, span := b.tracer.Start(ctx, name)
	return span
}

// startRoot starts a span in a new trace.
func (b *Bridge) startRoot(ctx context.Context, name string) trace.Span {
	_, span := b.tracer.Start(ctx, name, trace.WithNewRoot())
	return span
}

// recordOf returns the OpenTelemetry span bridged for a host span.
func recordOf(span *instrument.SpanRef) (trace.Span, bool) {
	var otelSpan trace.Span
	span.WithExtensions(func(ext *instrument.Extensions) {
		if rec, ok := ext.Get(recordKey{}); ok {
			otelSpan = rec.(*SpanRecord).Span()
		}
	})
	return otelSpan, otelSpan != nil
}
