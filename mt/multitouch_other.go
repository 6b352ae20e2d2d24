//go:build !(darwin && cgo)

package mt

import (
	"errors"

	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
)

// Multitouch needs the private framework, which exists only on macOS.
// This stub keeps the rest of the tree building elsewhere, mainly for
// emulator-only development.
type Multitouch struct{}

var errNoMultitouch = errors.New("multitouch backend requires macOS")

func InitMultitouch(mw *memorywriter.MemoryWriter) (*Multitouch, error) {
	return nil, errNoMultitouch
}

func (b *Multitouch) Has(path string) bool {
	return false
}

func (b *Multitouch) Enumerate() ([]core.Info, error) {
	return nil, errNoMultitouch
}

func (b *Multitouch) Open(path string) (core.Device, error) {
	return nil, errNoMultitouch
}

func (b *Multitouch) Default() (core.Info, core.Device, error) {
	return core.Info{}, nil, errNoMultitouch
}
