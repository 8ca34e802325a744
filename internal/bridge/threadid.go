package bridge

import (
	"strconv"

	"github.com/petermattis/goid"
)

// goroutineID returns the calling goroutine's ID as a thread.id value.
// goid reads the ID straight from the runtime's goroutine descriptor, so
// there is nothing to cache per goroutine; the value is stable for the
// goroutine's lifetime.
func goroutineID() string {
	return strconv.FormatInt(goid.Get(), 10)
}
