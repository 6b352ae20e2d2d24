package core

import (
	"fmt"
	"sync"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

// Handle owns one native device resource for its lifetime.
//
// State machine: created -> (Listen <-> Stop)* -> Close. Listen on a
// running handle is a logic error and is refused without side effect;
// silently replacing the previous handler would leak its registration
// and break the at-most-one-handler invariant. Close stops first and
// releases the native resource exactly once.
type Handle struct {
	info  Info
	class touch.Class // immutable for the resource lifetime, computed once
	dev   Device

	mutex   sync.Mutex
	running bool
	closed  bool
	stream  *stream // last Stream registration, if any

	log *memorywriter.MemoryWriter
}

func NewHandle(info Info, dev Device, log *memorywriter.MemoryWriter) *Handle {
	return &Handle{
		info:  info,
		class: touch.Classify(info.Builtin, info.FamilyID),
		dev:   dev,
		log:   log,
	}
}

func (h *Handle) Log(s string) {
	if h.log != nil {
		h.log.Println("handle " + h.info.Path + " - " + s)
	}
}

func (h *Handle) Info() Info {
	return h.info
}

// Class is cached at construction; raw attributes can be re-read any
// time but the classification cannot change for a live resource.
func (h *Handle) Class() touch.Class {
	return h.class
}

func (h *Handle) DeviceID() uint64 {
	return h.dev.DeviceID()
}

func (h *Handle) FamilyID() int32 {
	return h.dev.FamilyID()
}

func (h *Handle) Builtin() bool {
	return h.dev.Builtin()
}

func (h *Handle) DriverType() int32 {
	return h.dev.DriverType()
}

func (h *Handle) SensorDimensions() (rows, cols int32) {
	return h.dev.SensorDimensions()
}

// SurfaceSize is the physical sensor surface in centimeters.
func (h *Handle) SurfaceSize() (width, height float64) {
	return h.dev.SurfaceSize()
}

func (h *Handle) Running() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.running
}

func (h *Handle) Closed() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.closed
}

// Listen registers fn as the recipient of all future frame batches and
// starts the device. The running flag mirrors the device's own
// post-start answer instead of assuming success - the native start
// call itself reports nothing.
func (h *Handle) Listen(fn Handler) error {
	if fn == nil {
		return ErrNilHandler
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return ErrClosedHandle
	}
	if h.running {
		h.Log("refusing second listen")
		return ErrAlreadyListening
	}

	if err := h.dev.Start(fn); err != nil {
		return err
	}
	h.running = h.dev.Running()
	h.Log(fmt.Sprintf("listening, running=%v", h.running))
	return nil
}

// Stop ends event delivery; the resource stays valid and may be
// restarted via Listen. Idempotent when already stopped. A handler
// invocation in flight when Stop is called completes naturally - there
// is no preemption across the native boundary.
func (h *Handle) Stop() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.stopLocked()
}

func (h *Handle) stopLocked() error {
	if !h.running {
		return nil
	}
	err := h.dev.Stop()
	h.running = false
	if h.stream != nil {
		// kept around so Dropped stays readable after a stop
		h.stream.close()
	}
	h.Log("stopped")
	return err
}

// Close stops the device if running and releases the native resource.
// Releasing exactly once is guaranteed even on earlier error paths;
// further calls are no-ops.
func (h *Handle) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil
	}
	_ = h.stopLocked()
	h.closed = true
	h.Log("releasing")
	return h.dev.Close()
}

// Stream is the channel variant of Listen: every record of every batch
// is forwarded as its own message, preserving batch order. The channel
// is closed when the handle is stopped or closed.
//
// The bridge must never block the native producer, so sends do not
// wait: when the consumer falls more than buffer records behind,
// records are dropped and counted (see Dropped).
func (h *Handle) Stream(buffer int) (<-chan touch.Touch, error) {
	if buffer <= 0 {
		buffer = 64
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil, ErrClosedHandle
	}
	if h.running {
		return nil, ErrAlreadyListening
	}

	s := newStream(buffer)
	if err := h.dev.Start(s.handler); err != nil {
		return nil, err
	}
	h.running = h.dev.Running()
	h.stream = s
	h.Log(fmt.Sprintf("streaming, running=%v", h.running))
	return s.ch, nil
}

// Dropped reports how many records the current or last Stream
// registration discarded because the consumer was too slow.
func (h *Handle) Dropped() uint64 {
	h.mutex.Lock()
	s := h.stream
	h.mutex.Unlock()
	if s == nil {
		return 0
	}
	return s.droppedCount()
}

// stream adapts the batch Handler contract to per-record channel
// delivery. Its mutex serializes pushes against close so that a
// callback racing a Stop never sends on a closed channel.
type stream struct {
	mutex   sync.Mutex
	ch      chan touch.Touch
	closed  bool
	dropped uint64
}

func newStream(buffer int) *stream {
	return &stream{
		ch: make(chan touch.Touch, buffer),
	}
}

func (s *stream) handler(device int32, touches []touch.Touch, timestamp float64, frame int32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	for _, t := range touches {
		select {
		case s.ch <- t:
		default:
			s.dropped++
		}
	}
}

func (s *stream) close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *stream) droppedCount() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dropped
}
