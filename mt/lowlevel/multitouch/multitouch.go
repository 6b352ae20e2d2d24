//go:build darwin && cgo

package multitouch

/*
#cgo LDFLAGS: -F/System/Library/PrivateFrameworks -framework MultitouchSupport -framework CoreFoundation

#include <stdbool.h>
#include <stdint.h>
#include <CoreFoundation/CoreFoundation.h>

typedef void *MTDeviceRef;
typedef int (*MTFrameCallbackRefcon)(int32_t, void *, int32_t, double, int32_t, void *);

// Private MultitouchSupport.framework symbols. There are no public
// headers; signatures follow the commonly reverse-engineered ones.
extern CFMutableArrayRef MTDeviceCreateList(void);
extern MTDeviceRef MTDeviceCreateDefault(void);
extern void MTDeviceRelease(MTDeviceRef);
extern void MTDeviceStart(MTDeviceRef, int32_t);
extern void MTDeviceStop(MTDeviceRef);
extern bool MTDeviceIsRunning(MTDeviceRef);
extern bool MTDeviceIsBuiltIn(MTDeviceRef);
extern int32_t MTDeviceGetDeviceID(MTDeviceRef, uint64_t *);
extern int32_t MTDeviceGetFamilyID(MTDeviceRef, int32_t *);
extern int32_t MTDeviceGetDriverType(MTDeviceRef, int32_t *);
extern int32_t MTDeviceGetSensorDimensions(MTDeviceRef, int32_t *, int32_t *);
extern int32_t MTDeviceGetSensorSurfaceDimensions(MTDeviceRef, int32_t *, int32_t *);
extern void MTRegisterContactFrameCallbackWithRefcon(MTDeviceRef, MTFrameCallbackRefcon, void *);
extern void MTUnregisterContactFrameCallback(MTDeviceRef, MTFrameCallbackRefcon);

extern int goContactFrame(int32_t device, void *records, int32_t fingers, double timestamp, int32_t frame, uintptr_t refcon);

// The refcon travels as a uintptr_t on both sides, so no Go pointer
// ever crosses into native memory.
static int mtFrameTrampoline(int32_t device, void *records, int32_t fingers, double timestamp, int32_t frame, void *refcon) {
	return goContactFrame(device, records, fingers, timestamp, frame, (uintptr_t)refcon);
}

static void mtRegisterContactFrame(MTDeviceRef dev, uintptr_t refcon) {
	MTRegisterContactFrameCallbackWithRefcon(dev, mtFrameTrampoline, (void *)refcon);
}

static void mtUnregisterContactFrame(MTDeviceRef dev) {
	MTUnregisterContactFrameCallback(dev, mtFrameTrampoline);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
)

// Device is an opaque native device reference.
type Device C.MTDeviceRef

// CreateList returns one owned reference per attached multitouch
// device. The CF array owns its members, so each one is retained
// before the array itself is dropped; callers release every returned
// Device exactly once.
func CreateList() ([]Device, error) {
	arr := C.MTDeviceCreateList()
	if arr == nil {
		return nil, errors.New("multitouch: device list unavailable")
	}
	defer C.CFRelease(C.CFTypeRef(arr))

	n := int(C.CFArrayGetCount(C.CFArrayRef(arr)))
	devs := make([]Device, 0, n)
	for i := 0; i < n; i++ {
		p := C.CFArrayGetValueAtIndex(C.CFArrayRef(arr), C.CFIndex(i))
		C.CFRetain(C.CFTypeRef(p))
		devs = append(devs, Device(p))
	}
	return devs, nil
}

// CreateDefault returns an owned reference to the default device.
func CreateDefault() (Device, error) {
	dev := C.MTDeviceCreateDefault()
	if dev == nil {
		return nil, errors.New("multitouch: no default device")
	}
	return Device(dev), nil
}

func Release(d Device) {
	C.MTDeviceRelease(C.MTDeviceRef(d))
}

// Start begins frame delivery. The native call reports nothing; the
// caller observes the outcome through IsRunning.
func Start(d Device, runMode int32) {
	C.MTDeviceStart(C.MTDeviceRef(d), C.int32_t(runMode))
}

func Stop(d Device) {
	C.MTDeviceStop(C.MTDeviceRef(d))
}

func IsRunning(d Device) bool {
	return bool(C.MTDeviceIsRunning(C.MTDeviceRef(d)))
}

func IsBuiltIn(d Device) bool {
	return bool(C.MTDeviceIsBuiltIn(C.MTDeviceRef(d)))
}

func DeviceID(d Device) (uint64, error) {
	var v C.uint64_t
	if st := C.MTDeviceGetDeviceID(C.MTDeviceRef(d), &v); st != 0 {
		return 0, fmt.Errorf("multitouch: device id status %d", int32(st))
	}
	return uint64(v), nil
}

func FamilyID(d Device) (int32, error) {
	var v C.int32_t
	if st := C.MTDeviceGetFamilyID(C.MTDeviceRef(d), &v); st != 0 {
		return 0, fmt.Errorf("multitouch: family id status %d", int32(st))
	}
	return int32(v), nil
}

func DriverType(d Device) (int32, error) {
	var v C.int32_t
	if st := C.MTDeviceGetDriverType(C.MTDeviceRef(d), &v); st != 0 {
		return 0, fmt.Errorf("multitouch: driver type status %d", int32(st))
	}
	return int32(v), nil
}

func SensorDimensions(d Device) (rows, cols int32, err error) {
	var r, c C.int32_t
	if st := C.MTDeviceGetSensorDimensions(C.MTDeviceRef(d), &r, &c); st != 0 {
		return 0, 0, fmt.Errorf("multitouch: sensor dimensions status %d", int32(st))
	}
	return int32(r), int32(c), nil
}

// SensorSurfaceDimensions returns the raw physical surface size in
// hundredths of a millimeter (a 10.5 cm wide internal trackpad reports
// 10500). Unit conversion is up to the caller.
func SensorSurfaceDimensions(d Device) (width, height int32, err error) {
	var w, h C.int32_t
	if st := C.MTDeviceGetSensorSurfaceDimensions(C.MTDeviceRef(d), &w, &h); st != 0 {
		return 0, 0, fmt.Errorf("multitouch: surface dimensions status %d", int32(st))
	}
	return int32(w), int32(h), nil
}

// Registration pins one FrameFunc for the native callback slot of one
// device. The cgo handle stands in for the refcon: the native side only
// ever sees an index into the runtime's handle table, never a Go
// pointer, and the table keeps the callable alive until Unregister.
type Registration struct {
	dev    Device
	handle cgo.Handle
}

// RegisterContactFrame installs fn as the device's contact frame
// recipient. The registration owns fn until Unregister is called;
// dropping a Registration without unregistering leaks the handle,
// since the native side may still invoke it.
func RegisterContactFrame(d Device, fn FrameFunc) *Registration {
	h := cgo.NewHandle(fn)
	C.mtRegisterContactFrame(C.MTDeviceRef(d), C.uintptr_t(h))
	return &Registration{dev: d, handle: h}
}

// Unregister removes the native callback and invalidates the refcon.
// Must only be called after the device is stopped; the native layer
// guarantees no invocations start after MTDeviceStop returns.
func (r *Registration) Unregister() {
	C.mtUnregisterContactFrame(C.MTDeviceRef(r.dev))
	r.handle.Delete()
}
