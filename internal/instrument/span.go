package instrument

import (
	"context"
	"fmt"
	"sync"
)

// ID identifies a live span within a Registry. The zero ID is never allocated.
type ID uint64

type parentKind uint8

const (
	parentContextual parentKind = iota
	parentRoot
	parentExplicit
)

// Parent declares how a new span or event finds its parent.
// The zero value is Contextual.
type Parent struct {
	kind parentKind
	id   ID
}

// Contextual inherits the parent from whatever span is current in the context.
func Contextual() Parent {
	return Parent{kind: parentContextual}
}

// Root opts out of any inherited context.
func Root() Parent {
	return Parent{kind: parentRoot}
}

// ChildOf declares an explicit parent span.
func ChildOf(id ID) Parent {
	return Parent{kind: parentExplicit, id: id}
}

// ID returns the explicit parent, if one was declared.
func (p Parent) ID() (ID, bool) {
	return p.id, p.kind == parentExplicit
}

// IsContextual reports whether the parent is inferred from the context.
func (p Parent) IsContextual() bool {
	return p.kind == parentContextual
}

// IsRoot reports whether the span was declared as an explicit root.
func (p Parent) IsRoot() bool {
	return p.kind == parentRoot
}

// Attributes describe a span at creation time.
type Attributes struct {
	Metadata *Metadata
	Fields   Fields
	Parent   Parent
}

// Event is a point-in-time occurrence, optionally associated with a span.
type Event struct {
	Metadata *Metadata
	Fields   Fields
	Parent   Parent
}

// Extensions is per-span storage that layers use to attach their own data.
type Extensions struct {
	values map[any]any
}

// Get returns the value stored under key.
func (e *Extensions) Get(key any) (any, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Insert stores value under key. Inserting over an existing key is a
// programming error and panics.
func (e *Extensions) Insert(key, value any) {
	if e.values == nil {
		e.values = make(map[any]any)
	}
	if _, exists := e.values[key]; exists {
		panic(fmt.Sprintf("instrument: extension %T already present on span", key))
	}
	e.values[key] = value
}

// Remove deletes and returns the value stored under key.
func (e *Extensions) Remove(key any) (any, bool) {
	v, ok := e.values[key]
	if ok {
		delete(e.values, key)
	}
	return v, ok
}

// Len returns the number of stored extensions.
func (e *Extensions) Len() int {
	return len(e.values)
}

// SpanRef is a handle to a live span held by a Registry.
type SpanRef struct {
	id       ID
	metadata *Metadata
	parent   ID

	mu         sync.Mutex
	extensions Extensions
}

// ID returns the span's identifier.
func (s *SpanRef) ID() ID {
	return s.id
}

// Metadata returns the span's call site metadata.
func (s *SpanRef) Metadata() *Metadata {
	return s.metadata
}

// ParentID returns the explicit or contextual parent the registry resolved
// when the span was created, or zero for roots.
func (s *SpanRef) ParentID() ID {
	return s.parent
}

// WithExtensions runs fn with exclusive access to the span's extensions.
// Access is serialized per span; fn must not call WithExtensions on the same span.
func (s *SpanRef) WithExtensions(fn func(ext *Extensions)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.extensions)
}

// Lookup resolves span identifiers for layers.
type Lookup interface {
	// Span returns the live span with the given ID
	Span(id ID) (*SpanRef, bool)

	// Current returns the span most recently entered in ctx, if it is still live
	Current(ctx context.Context) (*SpanRef, bool)
}

// Layer observes span and event notifications dispatched by a Registry.
type Layer interface {
	// OnNewSpan is called once after a span has been stored in the registry
	OnNewSpan(ctx context.Context, attrs *Attributes, id ID, lookup Lookup)

	// OnRecord is called when new field values are recorded on a span
	OnRecord(ctx context.Context, id ID, values Fields, lookup Lookup)

	// OnEvent is called for every emitted event
	OnEvent(ctx context.Context, event *Event, lookup Lookup)

	// OnClose is called before the span and its extensions are discarded
	OnClose(ctx context.Context, id ID, lookup Lookup)
}
