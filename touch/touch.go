package touch

import "fmt"

// Data model for multitouch contact frames.
//
// Touch mirrors the contact record the native multitouch subsystem hands
// to the contact frame callback. The layout is a binary contract - the
// callback bridge reinterprets the native array in place, so fields must
// match the native struct in order, type and alignment. Do not reorder,
// add or remove fields.

// Point is a position or velocity sample on one axis pair.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Vector is a position plus velocity pair. It is used both for the
// normalized coordinate space (0..1 per axis, not enforced by hardware)
// and for the absolute one.
type Vector struct {
	Pos Point `json:"pos"`
	Vel Point `json:"vel"`
}

// State is the lifecycle state of a single finger contact. The ordinals
// are defined by the hardware driver and must round-trip bit-exactly.
type State int32

const (
	NotTracking   State = 0
	StartInRange  State = 1
	HoverInRange  State = 2
	MakeTouch     State = 3
	Touching      State = 4
	BreakTouch    State = 5
	LingerInRange State = 6
	OutOfRange    State = 7
)

var stateNames = []string{
	"not-tracking",
	"start-in-range",
	"hover-in-range",
	"make-touch",
	"touching",
	"break-touch",
	"linger-in-range",
	"out-of-range",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	// driver states outside the documented range are kept as-is
	return fmt.Sprintf("state(%d)", int32(s))
}

// Touch is one finger's sample for one frame.
//
// There is a 4-byte alignment hole between Frame and Timestamp, same as
// in the native struct; both sides agree because float64 is 8-aligned.
// The UnknownN fields have unconfirmed upstream semantics and are
// carried opaquely, never interpreted.
type Touch struct {
	Frame      int32   `json:"frame"`      // frame number of this sample
	Timestamp  float64 `json:"timestamp"`  // event timestamp in seconds
	Identifier int32   `json:"identifier"` // stable for the life of one touch
	State      State   `json:"state"`
	FingerID   int32   `json:"fingerId"`
	HandID     int32   `json:"handId"`
	Normalized Vector  `json:"normalized"` // 0,0 to 1,1
	ZTotal     float32 `json:"zTotal"`
	Unknown3   int32   `json:"unknown3"`
	Angle      float32 `json:"angle"` // ellipse fit, radians
	MajorAxis  float32 `json:"majorAxis"`
	MinorAxis  float32 `json:"minorAxis"`
	Absolute   Vector  `json:"absolute"`
	Unknown4   int32   `json:"unknown4"`
	Unknown5   int32   `json:"unknown5"`
	ZDensity   float32 `json:"zDensity"`
}

func (t Touch) String() string {
	return fmt.Sprintf("touch %d finger %d %s pos (%.3f, %.3f)",
		t.Identifier, t.FingerID, t.State, t.Normalized.Pos.X, t.Normalized.Pos.Y)
}
