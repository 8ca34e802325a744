package instrument

import (
	"math"
)

// FieldKind identifies the value stored in a Field.
type FieldKind uint8

const (
	UnknownKind FieldKind = iota
	BoolKind
	Float64Kind
	Int64Kind
	StringKind
	DebugKind
	ErrorKind
)

// Field is a named, typed value attached to a span or event.
// The layout follows zapcore.Field: scalars live in Integer, strings in
// String and everything else in Interface.
type Field struct {
	Key       string
	Kind      FieldKind
	Integer   int64
	String    string
	Interface any
}

// Visitor receives each field of a span or event, one call per field, in the
// order the fields were declared.
type Visitor interface {
	VisitBool(field string, value bool)
	VisitFloat64(field string, value float64)
	VisitInt64(field string, value int64)
	VisitString(field string, value string)
	VisitDebug(field string, value any)
	VisitError(field string, err error)
}

// Bool constructs a boolean field.
func Bool(key string, value bool) Field {
	var i int64
	if value {
		i = 1
	}
	return Field{Key: key, Kind: BoolKind, Integer: i}
}

// Float64 constructs a floating point field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Kind: Float64Kind, Integer: int64(math.Float64bits(value))}
}

// Int64 constructs a signed integer field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Kind: Int64Kind, Integer: value}
}

// String constructs a string field.
func String(key string, value string) Field {
	return Field{Key: key, Kind: StringKind, String: value}
}

// Debug constructs a field rendered with its formatted representation.
func Debug(key string, value any) Field {
	return Field{Key: key, Kind: DebugKind, Interface: value}
}

// Error constructs an error field. The error's Unwrap chain is preserved.
func Error(key string, err error) Field {
	return Field{Key: key, Kind: ErrorKind, Interface: err}
}

// Message constructs the conventional "message" field of an event.
func Message(msg string) Field {
	return String("message", msg)
}

// Any picks the field kind from the dynamic type of value.
func Any(key string, value any) Field {
	switch v := value.(type) {
	case bool:
		return Bool(key, v)
	case float64:
		return Float64(key, v)
	case float32:
		return Float64(key, float64(v))
	case int:
		return Int64(key, int64(v))
	case int64:
		return Int64(key, v)
	case int32:
		return Int64(key, int64(v))
	case int16:
		return Int64(key, int64(v))
	case int8:
		return Int64(key, int64(v))
	case string:
		return String(key, v)
	case error:
		return Error(key, v)
	default:
		return Debug(key, v)
	}
}

// Accept presents the field to the visitor. Kinds the visitor has no
// dedicated method for are routed through VisitDebug.
func (f Field) Accept(v Visitor) {
	switch f.Kind {
	case BoolKind:
		v.VisitBool(f.Key, f.Integer == 1)
	case Float64Kind:
		v.VisitFloat64(f.Key, math.Float64frombits(uint64(f.Integer)))
	case Int64Kind:
		v.VisitInt64(f.Key, f.Integer)
	case StringKind:
		v.VisitString(f.Key, f.String)
	case ErrorKind:
		if err, ok := f.Interface.(error); ok && err != nil {
			v.VisitError(f.Key, err)
			return
		}
		v.VisitDebug(f.Key, f.Interface)
	default:
		v.VisitDebug(f.Key, f.Interface)
	}
}

// Fields is an ordered sequence of fields. Keys may repeat.
type Fields []Field

// Record presents every field to the visitor in order.
func (fs Fields) Record(v Visitor) {
	for _, f := range fs {
		f.Accept(v)
	}
}
