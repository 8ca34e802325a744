// Package instrument provides the span and event model that instrumented code
// emits, and an in-memory Registry that dispatches those notifications to
// layers such as the OpenTelemetry bridge.
package instrument

import (
	"fmt"
	"runtime"
	"strings"
)

// Level is the severity of a span or event.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int8(l))
	}
}

// Metadata describes the static call site of a span or event.
// An empty File or ModulePath, or a zero Line, means the value is unknown.
type Metadata struct {
	// Name is the declared name of the span or event
	Name string

	// Target is the origin or category, usually the package path
	Target string

	// Level is the declared severity
	Level Level

	// File is the source file of the call site
	File string

	// ModulePath is the Go package path of the call site
	ModulePath string

	// Line is the source line of the call site
	Line int
}

// NewMetadata captures the call site skip frames above the caller of NewMetadata.
// An empty target defaults to the package path of the call site.
func NewMetadata(name, target string, level Level, skip int) *Metadata {
	meta := &Metadata{
		Name:   name,
		Target: target,
		Level:  level,
	}

	if pc, file, line, ok := runtime.Caller(skip + 1); ok {
		meta.File = file
		meta.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			meta.ModulePath = packagePath(fn.Name())
		}
	}

	if meta.Target == "" {
		meta.Target = meta.ModulePath
	}

	return meta
}

// packagePath strips the function and receiver parts from a fully qualified
// function name such as "github.com/x/y/pkg.(*T).Method".
func packagePath(funcName string) string {
	lastSlash := strings.LastIndexByte(funcName, '/')
	if lastSlash < 0 {
		lastSlash = 0
	}
	dot := strings.IndexByte(funcName[lastSlash:], '.')
	if dot < 0 {
		return funcName
	}
	return funcName[:lastSlash+dot]
}
