package instrument

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const shardCount = 16

type currentSpanKey struct{}

// shard holds a slice of the live span table
type shard struct {
	mu    sync.RWMutex
	spans map[ID]*SpanRef
}

// Registry stores live spans and dispatches span and event notifications to
// its layers. It is safe for concurrent use.
type Registry struct {
	shards [shardCount]shard
	nextID *atomic.Uint64
	layers []Layer
	logger *zap.Logger
}

var _ Lookup = (*Registry)(nil)

// NewRegistry creates an empty registry with the given layers.
func NewRegistry(logger *zap.Logger, layers ...Layer) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		nextID: atomic.NewUint64(0),
		layers: layers,
		logger: logger,
	}
	for i := range r.shards {
		r.shards[i].spans = make(map[ID]*SpanRef)
	}
	return r
}

// With returns the registry after appending layers. It must be called before
// any notification is dispatched.
func (r *Registry) With(layers ...Layer) *Registry {
	r.layers = append(r.layers, layers...)
	return r
}

// shardFor picks the shard holding id
func (r *Registry) shardFor(id ID) *shard {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return &r.shards[xxhash.Sum64(b[:])%shardCount]
}

// Span returns the live span with the given ID.
func (r *Registry) Span(id ID) (*SpanRef, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	span, ok := s.spans[id]
	return span, ok
}

// Current returns the span most recently entered in ctx, if it is still live.
func (r *Registry) Current(ctx context.Context) (*SpanRef, bool) {
	id, ok := ctx.Value(currentSpanKey{}).(ID)
	if !ok {
		return nil, false
	}
	return r.Span(id)
}

// Enter returns a context in which id is the current span.
func (r *Registry) Enter(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, id)
}

// NewSpan stores a new span and notifies every layer.
func (r *Registry) NewSpan(ctx context.Context, attrs *Attributes) ID {
	id := ID(r.nextID.Inc())

	span := &SpanRef{
		id:       id,
		metadata: attrs.Metadata,
		parent:   r.resolveParent(ctx, attrs.Parent),
	}

	s := r.shardFor(id)
	s.mu.Lock()
	s.spans[id] = span
	s.mu.Unlock()

	for _, layer := range r.layers {
		layer.OnNewSpan(ctx, attrs, id, r)
	}

	return id
}

// resolveParent returns the host-side parent of a new span
func (r *Registry) resolveParent(ctx context.Context, parent Parent) ID {
	if id, ok := parent.ID(); ok {
		if _, live := r.Span(id); live {
			return id
		}
		return 0
	}
	if parent.IsContextual() {
		if current, ok := r.Current(ctx); ok {
			return current.ID()
		}
	}
	return 0
}

// Record notifies layers of new field values for a live span. Unknown IDs are ignored.
func (r *Registry) Record(ctx context.Context, id ID, fields ...Field) {
	if _, ok := r.Span(id); !ok {
		r.logger.Debug("Ignoring record for unknown span", zap.Uint64("span_id", uint64(id)))
		return
	}

	for _, layer := range r.layers {
		layer.OnRecord(ctx, id, fields, r)
	}
}

// Event notifies layers of an event.
func (r *Registry) Event(ctx context.Context, event *Event) {
	for _, layer := range r.layers {
		layer.OnEvent(ctx, event, r)
	}
}

// Close notifies layers that the span has finished and then discards it
// together with its extensions.
func (r *Registry) Close(ctx context.Context, id ID) {
	if _, ok := r.Span(id); !ok {
		r.logger.Debug("Ignoring close for unknown span", zap.Uint64("span_id", uint64(id)))
		return
	}

	for _, layer := range r.layers {
		layer.OnClose(ctx, id, r)
	}

	s := r.shardFor(id)
	s.mu.Lock()
	delete(s.spans, id)
	s.mu.Unlock()
}

// Len returns the number of live spans.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.spans)
		s.mu.RUnlock()
	}
	return n
}

// Start creates a contextual span and enters it.
func (r *Registry) Start(ctx context.Context, meta *Metadata, fields ...Field) (context.Context, ID) {
	id := r.NewSpan(ctx, &Attributes{
		Metadata: meta,
		Fields:   fields,
		Parent:   Contextual(),
	})
	return r.Enter(ctx, id), id
}

// Emit dispatches a contextual event.
func (r *Registry) Emit(ctx context.Context, meta *Metadata, fields ...Field) {
	r.Event(ctx, &Event{
		Metadata: meta,
		Fields:   fields,
		Parent:   Contextual(),
	})
}
