package main

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"
)

func TestRunPipelineExporter(t *testing.T) {
	var out bytes.Buffer
	opts := defaultOptions()
	opts.exporter = exporterPipeline

	require.NoError(t, run(context.Background(), opts, &out, zap.NewNop()))

	td, err := (&ptrace.JSONUnmarshaler{}).UnmarshalTraces([]byte(strings.TrimSpace(out.String())))
	require.NoError(t, err)
	require.Equal(t, 2, td.SpanCount())

	spans := td.ResourceSpans().At(0).ScopeSpans()
	byName := map[string]ptrace.Span{}
	for i := 0; i < spans.Len(); i++ {
		ss := spans.At(i).Spans()
		for j := 0; j < ss.Len(); j++ {
			byName[ss.At(j).Name()] = ss.At(j)
		}
	}

	root, ok := byName["root"]
	require.True(t, ok)
	request, ok := byName["send request"]
	require.True(t, ok)

	assert.Equal(t, root.SpanID(), request.ParentSpanID())
	assert.Equal(t, root.TraceID(), request.TraceID())

	workUnits, ok := request.Attributes().Get("work_units")
	require.True(t, ok)
	assert.Equal(t, "2", workUnits.Str())
	threadName, ok := request.Attributes().Get("thread.name")
	require.True(t, ok)
	assert.Equal(t, workloadName, threadName.Str())
	threadID, ok := request.Attributes().Get("thread.id")
	require.True(t, ok)
	assert.NotEqual(t, strconv.FormatInt(goid.Get(), 10), threadID.Str(), "workload runs on its own goroutine")

	require.Equal(t, 1, request.Events().Len())
	event := request.Events().At(0)
	assert.Equal(t, "This event will be logged in the root span.", event.Name())
	level, ok := event.Attributes().Get("level")
	require.True(t, ok)
	assert.Equal(t, "ERROR", level.Str())
}

type stubProvider struct {
	flushErr    error
	shutdownErr error
	flushed     bool
	shutdown    bool
}

func (p *stubProvider) ForceFlush(context.Context) error {
	p.flushed = true
	return p.flushErr
}

func (p *stubProvider) Shutdown(context.Context) error {
	p.shutdown = true
	return p.shutdownErr
}

func TestFlushAndShutdown(t *testing.T) {
	tests := []struct {
		name    string
		tp      *stubProvider
		wantErr string
	}{
		{"clean", &stubProvider{}, ""},
		{"flush fails", &stubProvider{flushErr: errors.New("exporter down")}, "failed to flush spans: exporter down"},
		{"shutdown fails", &stubProvider{shutdownErr: errors.New("stuck")}, "failed to shut down tracer provider: stuck"},
		{"both fail", &stubProvider{flushErr: errors.New("exporter down"), shutdownErr: errors.New("stuck")}, "failed to flush spans: exporter down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := flushAndShutdown(context.Background(), tt.tp)

			assert.True(t, tt.tp.flushed)
			assert.True(t, tt.tp.shutdown, "provider must be shut down even when the flush fails")
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestRunStdoutExporter(t *testing.T) {
	var out bytes.Buffer
	opts := defaultOptions()

	require.NoError(t, run(context.Background(), opts, &out, zap.NewNop()))

	assert.Contains(t, out.String(), `"Name": "send request"`)
	assert.Contains(t, out.String(), "This event will be logged in the root span.")
}

func TestRunUnknownExporter(t *testing.T) {
	opts := defaultOptions()
	opts.exporter = "kafka"

	err := run(context.Background(), opts, &bytes.Buffer{}, zap.NewNop())
	assert.ErrorContains(t, err, `unknown exporter "kafka"`)
}

func TestRootCommandFlags(t *testing.T) {
	t.Setenv("TRACEBRIDGE_INCLUDE_THREADS", "false")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--exporter", "pipeline", "--include-level", "--include-location=false"})

	require.NoError(t, cmd.Execute())

	td, err := (&ptrace.JSONUnmarshaler{}).UnmarshalTraces([]byte(strings.TrimSpace(out.String())))
	require.NoError(t, err)

	var request ptrace.Span
	found := false
	ss := td.ResourceSpans().At(0).ScopeSpans()
	for i := 0; i < ss.Len() && !found; i++ {
		spans := ss.At(i).Spans()
		for j := 0; j < spans.Len(); j++ {
			if spans.At(j).Name() == "send request" {
				request, found = spans.At(j), true
				break
			}
		}
	}
	require.True(t, found)

	assert.Equal(t, map[string]any{"level": "TRACE", "work_units": "2"}, request.Attributes().AsRaw())
}

func TestRootCommandRejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}
