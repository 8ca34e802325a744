package instrument

import (
	"context"
	"runtime/pprof"
)

// GoroutineNameLabel is the pprof label carrying a goroutine's name.
const GoroutineNameLabel = "goroutine.name"

// WithGoroutineName labels the calling goroutine with name and returns the
// labelled context. Goroutines started afterwards inherit the label.
//
// The label stays on the calling goroutine until it is replaced with
// pprof.SetGoroutineLabels; call it from a goroutine the caller owns, not
// from a shared one such as main.
func WithGoroutineName(ctx context.Context, name string) context.Context {
	ctx = pprof.WithLabels(ctx, pprof.Labels(GoroutineNameLabel, name))
	pprof.SetGoroutineLabels(ctx)
	return ctx
}

// GoroutineName returns the name set by WithGoroutineName, if any.
func GoroutineName(ctx context.Context) (string, bool) {
	name, ok := pprof.Label(ctx, GoroutineNameLabel)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
