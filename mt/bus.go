package mt

import (
	"errors"

	"github.com/DeepSignSecurity/trackpad-go/core"
)

var (
	ErrNotFound     = errors.New("device not found")
	errClosedDevice = errors.New("closed device")
)

// MT multiplexes several device backends behind one core.Bus, routing
// by path prefix the same way each backend reported it.
type MT struct {
	backends []core.Bus
}

func Init(backends ...core.Bus) *MT {
	return &MT{
		backends: backends,
	}
}

func (b *MT) Has(path string) bool {
	for _, b := range b.backends {
		if b.Has(path) {
			return true
		}
	}
	return false
}

func (b *MT) Enumerate() ([]core.Info, error) {
	var infos []core.Info

	for _, b := range b.backends {
		l, err := b.Enumerate()
		if err != nil {
			return nil, err
		}
		infos = append(infos, l...)
	}
	return infos, nil
}

func (b *MT) Open(path string) (core.Device, error) {
	for _, b := range b.backends {
		if b.Has(path) {
			return b.Open(path)
		}
	}
	return nil, ErrNotFound
}

// Default asks the first backend that knows a native default device.
func (b *MT) Default() (core.Info, core.Device, error) {
	for _, b := range b.backends {
		if db, ok := b.(core.DefaultBus); ok {
			return db.Default()
		}
	}
	return core.Info{}, nil, ErrNotFound
}
