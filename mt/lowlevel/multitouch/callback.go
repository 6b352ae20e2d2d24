//go:build darwin && cgo

package multitouch

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/DeepSignSecurity/trackpad-go/touch"
)

// goContactFrame is the single entry point the native trampoline calls
// for every contact frame, on whatever thread the driver loop happens
// to run. It is the trust boundary: raw array in, safe slice out, and
// no panic may ever unwind past it into native stack frames.

//export goContactFrame
func goContactFrame(device C.int32_t, records unsafe.Pointer, fingers C.int32_t, timestamp C.double, frame C.int32_t, refcon C.uintptr_t) (rc C.int) {
	defer func() {
		if r := recover(); r != nil {
			logf("contact frame panic contained: %v", r)
			rc = C.int(FrameAbort)
		}
	}()

	// Value panics on a stale refcon; the recover above turns that
	// into an abort result instead of undefined behavior.
	fn, ok := cgo.Handle(refcon).Value().(FrameFunc)
	if !ok {
		logf("refcon does not hold a FrameFunc")
		return C.int(FrameAbort)
	}

	// Borrowed view over the native array, valid only inside this
	// call. A zero-count frame is legitimate and must not touch the
	// pointer at all.
	var touches []touch.Touch
	if fingers > 0 && records != nil {
		touches = unsafe.Slice((*touch.Touch)(records), int(fingers))
	}

	return C.int(fn(int32(device), touches, float64(timestamp), int32(frame)))
}
