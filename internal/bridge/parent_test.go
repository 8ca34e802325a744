package bridge

import (
	"context"
	"testing"

	"github.com/deepaksharma/otel-tracing-bridge/internal/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func assertChildOf(t *testing.T, child, parent trace.Span) {
	t.Helper()
	childSpan, ok := child.(interface{ Parent() trace.SpanContext })
	require.True(t, ok, "SDK spans expose their parent")
	assert.Equal(t, parent.SpanContext().SpanID(), childSpan.Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func assertRoot(t *testing.T, span trace.Span, others ...trace.Span) {
	t.Helper()
	root, ok := span.(interface{ Parent() trace.SpanContext })
	require.True(t, ok, "SDK spans expose their parent")
	assert.False(t, root.Parent().IsValid(), "expected a root span")
	for _, other := range others {
		assert.NotEqual(t, other.SpanContext().TraceID(), span.SpanContext().TraceID(), "root must start a new trace")
	}
}

func TestExplicitParentResolvesToBridgedSpan(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	parent := env.newSpan(ctx, "parent", instrument.Root())
	child := env.newSpan(ctx, "child", instrument.ChildOf(parent))

	assertChildOf(t, env.otelSpan(t, child), env.otelSpan(t, parent))
}

func TestExplicitParentWinsOverCurrentSpan(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	a := env.newSpan(ctx, "a", instrument.Root())
	b := env.newSpan(ctx, "b", instrument.Root())

	ctx = env.registry.Enter(ctx, a)
	child := env.newSpan(ctx, "child", instrument.ChildOf(b))

	assertChildOf(t, env.otelSpan(t, child), env.otelSpan(t, b))
}

func TestUnresolvableExplicitParentBehavesLikeContextual(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	current := env.newSpan(ctx, "current", instrument.Root())
	ctx = env.registry.Enter(ctx, current)

	dangling := env.newSpan(ctx, "dangling", instrument.ChildOf(instrument.ID(9999)))
	contextual := env.newSpan(ctx, "contextual", instrument.Contextual())

	assertChildOf(t, env.otelSpan(t, dangling), env.otelSpan(t, current))
	assertChildOf(t, env.otelSpan(t, contextual), env.otelSpan(t, current))

	orphan := env.newSpan(context.Background(), "orphan", instrument.ChildOf(instrument.ID(9999)))
	assertRoot(t, env.otelSpan(t, orphan), env.otelSpan(t, current))
}

func TestUnbridgedExplicitParentBehavesLikeContextual(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	registry := instrument.NewRegistry(nil)
	early := registry.NewSpan(ctx, &instrument.Attributes{Metadata: meta("early")})
	registry.With(env.bridge)

	ctx, ambient := env.provider.Tracer("app").Start(ctx, "ambient")
	defer ambient.End()

	child := registry.NewSpan(ctx, &instrument.Attributes{Metadata: meta("child"), Parent: instrument.ChildOf(early)})
	span, ok := registry.Span(child)
	require.True(t, ok)
	otelChild, ok := recordOf(span)
	require.True(t, ok)

	assertChildOf(t, otelChild, ambient)
}

func TestContextualSpanUsesCurrentSpan(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	ctx, parent := env.registry.Start(ctx, meta("parent"))
	_, child := env.registry.Start(ctx, meta("child"))

	assertChildOf(t, env.otelSpan(t, child), env.otelSpan(t, parent))
}

func TestCurrentSpanWinsOverAmbientParent(t *testing.T) {
	env := newTestEnv(t, bareConfig())

	ctx, ambient := env.provider.Tracer("app").Start(context.Background(), "ambient")
	defer ambient.End()

	parent := env.newSpan(context.Background(), "parent", instrument.Root())
	ctx = env.registry.Enter(ctx, parent)
	child := env.newSpan(ctx, "child", instrument.Contextual())

	assertChildOf(t, env.otelSpan(t, child), env.otelSpan(t, parent))
}

func TestContextualSpanUsesAmbientParent(t *testing.T) {
	env := newTestEnv(t, bareConfig())

	ctx, ambient := env.provider.Tracer("app").Start(context.Background(), "ambient")
	defer ambient.End()

	child := env.newSpan(ctx, "child", instrument.Contextual())

	assertChildOf(t, env.otelSpan(t, child), ambient)
}

func TestContextualSpanWithoutParentIsRoot(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	first := env.newSpan(ctx, "first", instrument.Contextual())
	second := env.newSpan(ctx, "second", instrument.Contextual())

	assertRoot(t, env.otelSpan(t, first))
	assertRoot(t, env.otelSpan(t, second), env.otelSpan(t, first))
}

func TestExplicitRootIgnoresContext(t *testing.T) {
	env := newTestEnv(t, bareConfig())

	ctx, ambient := env.provider.Tracer("app").Start(context.Background(), "ambient")
	defer ambient.End()

	current := env.newSpan(ctx, "current", instrument.Contextual())
	ctx = env.registry.Enter(ctx, current)

	root := env.newSpan(ctx, "root", instrument.Root())

	assertRoot(t, env.otelSpan(t, root), ambient, env.otelSpan(t, current))
}

func TestParentLinksSurviveExport(t *testing.T) {
	env := newTestEnv(t, bareConfig())
	ctx := context.Background()

	ctx, parent := env.registry.Start(ctx, meta("parent"))
	childCtx, child := env.registry.Start(ctx, meta("child"))
	env.registry.Close(childCtx, child)
	env.registry.Close(ctx, parent)

	exportedParent := env.ended(t, "parent")
	exportedChild := env.ended(t, "child")
	assert.Equal(t, exportedParent.SpanContext().SpanID(), exportedChild.Parent().SpanID())
	assert.Equal(t, exportedParent.SpanContext().TraceID(), exportedChild.SpanContext().TraceID())
}
