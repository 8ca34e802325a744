package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deepaksharma/otel-tracing-bridge/internal/instrument"
)

const (
	fieldMessage             = "message"
	fieldExceptionMessage    = "exception.message"
	fieldExceptionStacktrace = "exception.stacktrace"
)

// propertyVisitor converts fields into textual properties on a sink.
// Fields named reserved are skipped; an empty reserved name records everything.
type propertyVisitor struct {
	sink     propertySink
	reserved string
}

var _ instrument.Visitor = (*propertyVisitor)(nil)

// newSpanVisitor records every field, including "message", onto a span record
func newSpanVisitor(rec *SpanRecord) *propertyVisitor {
	return &propertyVisitor{sink: rec}
}

// newEventVisitor records every field except "message", which names the event
func newEventVisitor(ev *Event) *propertyVisitor {
	return &propertyVisitor{sink: ev, reserved: fieldMessage}
}

func (v *propertyVisitor) skip(field string) bool {
	return v.reserved != "" && field == v.reserved
}

func (v *propertyVisitor) VisitBool(field string, value bool) {
	if v.skip(field) {
		return
	}
	v.sink.setProperty(field, strconv.FormatBool(value))
}

func (v *propertyVisitor) VisitFloat64(field string, value float64) {
	if v.skip(field) {
		return
	}
	v.sink.setProperty(field, formatFloat(value))
}

func (v *propertyVisitor) VisitInt64(field string, value int64) {
	if v.skip(field) {
		return
	}
	v.sink.setProperty(field, strconv.FormatInt(value, 10))
}

func (v *propertyVisitor) VisitString(field string, value string) {
	if v.skip(field) {
		return
	}
	v.sink.setProperty(field, value)
}

func (v *propertyVisitor) VisitDebug(field string, value any) {
	if v.skip(field) {
		return
	}
	v.sink.setProperty(field, formatDebug(value))
}

// VisitError expands one error into four properties: the field itself,
// exception.message, <field>.chain and exception.stacktrace.
func (v *propertyVisitor) VisitError(field string, err error) {
	if v.skip(field) {
		return
	}

	msg := err.Error()
	chain := formatChain(errorChain(err))

	v.sink.setProperty(field, msg)
	v.sink.setProperty(fieldExceptionMessage, msg)
	v.sink.setProperty(field+".chain", chain)
	v.sink.setProperty(fieldExceptionStacktrace, chain)
}

// eventNameFinder extracts the "message" field of an event without
// recording anything. The last message field seen wins.
type eventNameFinder struct {
	name  string
	found bool
}

var _ instrument.Visitor = (*eventNameFinder)(nil)

func (f *eventNameFinder) set(field, value string) {
	if field == fieldMessage {
		f.name = value
		f.found = true
	}
}

func (f *eventNameFinder) VisitBool(field string, value bool) {
	f.set(field, strconv.FormatBool(value))
}

func (f *eventNameFinder) VisitFloat64(field string, value float64) {
	f.set(field, formatFloat(value))
}

func (f *eventNameFinder) VisitInt64(field string, value int64) {
	f.set(field, strconv.FormatInt(value, 10))
}

func (f *eventNameFinder) VisitString(field string, value string) {
	f.set(field, value)
}

func (f *eventNameFinder) VisitDebug(field string, value any) {
	f.set(field, formatDebug(value))
}

func (f *eventNameFinder) VisitError(field string, err error) {
	f.set(field, err.Error())
}

// formatFloat renders the shortest decimal form without an exponent.
func formatFloat(value float64) string {
	switch {
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	case math.IsNaN(value):
		return "NaN"
	default:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
}

func formatDebug(value any) string {
	return fmt.Sprintf("%+v", value)
}

// errorChain collects the messages of every error wrapped by err, depth-first
// in wrapping order. err itself is not included.
func errorChain(err error) []string {
	var chain []string
	var walk func(error)
	walk = func(e error) {
		for _, cause := range causes(e) {
			chain = append(chain, cause.Error())
			walk(cause)
		}
	}
	walk(err)
	return chain
}

// causes returns the errors directly wrapped by err, covering both the
// single Unwrap() error and the multi Unwrap() []error forms.
func causes(err error) []error {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		out := make([]error, 0, len(e.Unwrap()))
		for _, cause := range e.Unwrap() {
			if cause != nil {
				out = append(out, cause)
			}
		}
		return out
	case interface{ Unwrap() error }:
		if cause := e.Unwrap(); cause != nil {
			return []error{cause}
		}
	}
	return nil
}

// formatChain renders a list of messages as ["a", "b"].
func formatChain(chain []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, msg := range chain {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(msg))
	}
	b.WriteByte(']')
	return b.String()
}
