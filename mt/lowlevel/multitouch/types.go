package multitouch

import "github.com/DeepSignSecurity/trackpad-go/touch"

// Result codes returned to the native caller.
const (
	FrameOK    int32 = 0
	FrameAbort int32 = -1
)

// FrameFunc receives one borrowed frame batch and returns a result
// code for the native caller. The slice is valid only for the duration
// of the call and may arrive on any thread.
type FrameFunc func(device int32, touches []touch.Touch, timestamp float64, frame int32) int32
