package core

import (
	"fmt"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

// Result codes handed back to the native caller by the callback bridge.
// The native subsystem treats them as one-way signaling; what matters
// is that an aborted delivery is distinguishable from a completed one.
const (
	FrameOK    int32 = 0
	FrameAbort int32 = -1
)

// Dispatch delivers one frame batch to fn inside the panic boundary.
//
// A panic in user code must never unwind into the native subsystem's
// stack frames, so it is converted to FrameAbort here; that one batch
// is lost, the registration and every other device stay intact.
//
// A zero-length batch is legitimate and invokes nothing. Dispatch never
// blocks; it is called from the native subsystem's own tight loop.
func Dispatch(log *memorywriter.MemoryWriter, fn Handler, device int32, touches []touch.Touch, timestamp float64, frame int32) (rc int32) {
	if fn == nil {
		return FrameAbort
	}
	if len(touches) == 0 {
		return FrameOK
	}

	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Println(fmt.Sprintf("bridge - handler panic contained on device %d frame %d: %v", device, frame, r))
			}
			rc = FrameAbort
		}
	}()

	fn(device, touches, timestamp, frame)
	return FrameOK
}
