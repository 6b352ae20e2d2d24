//go:build !darwin || !cgo

// shim for other platforms so that ../../multitouch.go builds

package multitouch

type Device uintptr

type Registration struct{}

func CreateList() ([]Device, error) {
	panic("multitouch: not available on this platform")
}

func CreateDefault() (Device, error) {
	panic("multitouch: not available on this platform")
}

func Release(d Device) {
	panic("multitouch: not available on this platform")
}

func Start(d Device, runMode int32) {
	panic("multitouch: not available on this platform")
}

func Stop(d Device) {
	panic("multitouch: not available on this platform")
}

func IsRunning(d Device) bool {
	panic("multitouch: not available on this platform")
}

func IsBuiltIn(d Device) bool {
	panic("multitouch: not available on this platform")
}

func DeviceID(d Device) (uint64, error) {
	panic("multitouch: not available on this platform")
}

func FamilyID(d Device) (int32, error) {
	panic("multitouch: not available on this platform")
}

func DriverType(d Device) (int32, error) {
	panic("multitouch: not available on this platform")
}

func SensorDimensions(d Device) (rows, cols int32, err error) {
	panic("multitouch: not available on this platform")
}

func SensorSurfaceDimensions(d Device) (width, height int32, err error) {
	panic("multitouch: not available on this platform")
}

func RegisterContactFrame(d Device, fn FrameFunc) *Registration {
	panic("multitouch: not available on this platform")
}

func (r *Registration) Unregister() {
	panic("multitouch: not available on this platform")
}
