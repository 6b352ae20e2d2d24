package multitouch

import (
	"fmt"
	"io"
	"sync"
)

var (
	logMutex  sync.Mutex
	logWriter io.Writer
)

// SetLogWriter directs low-level trace lines somewhere, typically a
// memorywriter. Safe to call before any device work starts.
func SetLogWriter(w io.Writer) {
	logMutex.Lock()
	logWriter = w
	logMutex.Unlock()
}

func logf(format string, args ...interface{}) {
	logMutex.Lock()
	w := logWriter
	logMutex.Unlock()
	if w == nil {
		return
	}
	_, err := fmt.Fprintf(w, "multitouch - "+format+"\n", args...)
	if err != nil {
		// whatever, just log it out
		fmt.Println(err)
	}
}
