//go:build darwin && cgo

package mt

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	lowlevel "github.com/DeepSignSecurity/trackpad-go/mt/lowlevel/multitouch"

	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

const multitouchPrefix = "mt"

// Multitouch is the real hardware backend over the private
// MultitouchSupport framework.
//
// Enumeration owns one native reference per present device; Open
// transfers nothing - the entry keeps the reference and the device
// wrapper releases it exactly once on Close. Paths are stable across
// enumerations because they derive from the native device id.
type Multitouch struct {
	mw *memorywriter.MemoryWriter

	mutex   sync.Mutex
	entries map[string]*mtEntry
}

type mtEntry struct {
	id   uint64
	ref  lowlevel.Device
	open bool
}

func InitMultitouch(mw *memorywriter.MemoryWriter) (*Multitouch, error) {
	mw.Log("init")
	lowlevel.SetLogWriter(mw)
	return &Multitouch{
		mw:      mw,
		entries: make(map[string]*mtEntry),
	}, nil
}

func (b *Multitouch) Has(path string) bool {
	return strings.HasPrefix(path, multitouchPrefix)
}

func (b *Multitouch) Enumerate() ([]core.Info, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.mw.Log("low level enumerating")
	list, err := lowlevel.CreateList()
	if err != nil {
		return nil, err
	}
	b.mw.Log("low level enumerating done")

	seen := make(map[string]bool)
	var infos []core.Info
	for _, dev := range list {
		id, err := lowlevel.DeviceID(dev)
		if err != nil {
			b.mw.Log("error reading device id " + err.Error())
			lowlevel.Release(dev)
			continue
		}
		path := multitouchPrefix + strconv.FormatUint(id, 16)
		if seen[path] {
			// driver occasionally reports a device twice
			lowlevel.Release(dev)
			continue
		}
		seen[path] = true

		entry := b.entries[path]
		if entry == nil {
			entry = &mtEntry{id: id, ref: dev}
			b.entries[path] = entry
		} else {
			// already holding a reference from an earlier enumeration
			lowlevel.Release(dev)
		}
		infos = append(infos, b.entryInfo(path, entry))
	}

	// drop references for devices that vanished, unless someone has
	// them open - their wrapper releases on Close
	for path, entry := range b.entries {
		if !seen[path] && !entry.open {
			b.mw.Log("releasing vanished device " + path)
			lowlevel.Release(entry.ref)
			delete(b.entries, path)
		}
	}
	return infos, nil
}

func (b *Multitouch) entryInfo(path string, entry *mtEntry) core.Info {
	fam, err := lowlevel.FamilyID(entry.ref)
	if err != nil {
		b.mw.Log("error reading family id " + err.Error())
	}
	return core.Info{
		Path:     path,
		DeviceID: entry.id,
		FamilyID: fam,
		Builtin:  lowlevel.IsBuiltIn(entry.ref),
	}
}

func (b *Multitouch) Open(path string) (core.Device, error) {
	b.mutex.Lock()
	entry := b.entries[path]
	b.mutex.Unlock()

	if entry == nil {
		// maybe attached since the last enumeration
		b.mw.Log("reenumerating")
		if _, err := b.Enumerate(); err != nil {
			return nil, err
		}
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	entry = b.entries[path]
	if entry == nil {
		return nil, ErrNotFound
	}
	if entry.open {
		return nil, core.ErrAlreadyOpen
	}
	entry.open = true
	return &mtDevice{b: b, path: path, entry: entry, mw: b.mw}, nil
}

// Default wraps the native "default device" call.
func (b *Multitouch) Default() (core.Info, core.Device, error) {
	ref, err := lowlevel.CreateDefault()
	if err != nil {
		return core.Info{}, nil, err
	}
	id, err := lowlevel.DeviceID(ref)
	if err != nil {
		lowlevel.Release(ref)
		return core.Info{}, nil, err
	}
	path := multitouchPrefix + strconv.FormatUint(id, 16)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	entry := b.entries[path]
	if entry == nil {
		entry = &mtEntry{id: id, ref: ref}
		b.entries[path] = entry
	} else {
		// keep the reference we already own
		lowlevel.Release(ref)
		if entry.open {
			return core.Info{}, nil, core.ErrAlreadyOpen
		}
	}
	entry.open = true
	info := b.entryInfo(path, entry)
	return info, &mtDevice{b: b, path: path, entry: entry, mw: b.mw}, nil
}

// release forgets the entry and drops its native reference. Called
// exactly once, from mtDevice.Close.
func (b *Multitouch) release(path string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	entry := b.entries[path]
	if entry == nil {
		return
	}
	delete(b.entries, path)
	lowlevel.Release(entry.ref)
}

// mtDevice is the sole owner of one native device resource.
type mtDevice struct {
	b     *Multitouch
	path  string
	entry *mtEntry
	mw    *memorywriter.MemoryWriter

	mutex  sync.Mutex
	reg    *lowlevel.Registration
	closed bool
}

func (d *mtDevice) DeviceID() uint64 {
	return d.entry.id
}

func (d *mtDevice) FamilyID() int32 {
	v, err := lowlevel.FamilyID(d.entry.ref)
	if err != nil {
		d.mw.Log(err.Error())
	}
	return v
}

func (d *mtDevice) Builtin() bool {
	return lowlevel.IsBuiltIn(d.entry.ref)
}

func (d *mtDevice) DriverType() int32 {
	v, err := lowlevel.DriverType(d.entry.ref)
	if err != nil {
		d.mw.Log(err.Error())
	}
	return v
}

func (d *mtDevice) SensorDimensions() (rows, cols int32) {
	rows, cols, err := lowlevel.SensorDimensions(d.entry.ref)
	if err != nil {
		d.mw.Log(err.Error())
	}
	return rows, cols
}

// SurfaceSize converts the raw reading to centimeters. The raw unit is
// hundredths of a millimeter: the 13" internal trackpad reports
// 10500 x 7605 for its 10.5 x 7.6 cm surface, hence the 1000 divisor.
func (d *mtDevice) SurfaceSize() (width, height float64) {
	w, h, err := lowlevel.SensorSurfaceDimensions(d.entry.ref)
	if err != nil {
		d.mw.Log(err.Error())
	}
	return float64(w) / 1000, float64(h) / 1000
}

func (d *mtDevice) Running() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return false
	}
	return lowlevel.IsRunning(d.entry.ref)
}

func (d *mtDevice) Start(fn core.Handler) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return errClosedDevice
	}
	if d.reg != nil {
		return core.ErrAlreadyListening
	}

	mw := d.mw
	d.reg = lowlevel.RegisterContactFrame(d.entry.ref, func(device int32, touches []touch.Touch, timestamp float64, frame int32) int32 {
		return core.Dispatch(mw, fn, device, touches, timestamp, frame)
	})
	d.mw.Log(fmt.Sprintf("starting %s", d.path))
	lowlevel.Start(d.entry.ref, 0)
	return nil
}

func (d *mtDevice) Stop() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stopLocked()
}

func (d *mtDevice) stopLocked() error {
	if d.reg == nil {
		return nil
	}
	// stop first; no new invocations start after MTDeviceStop returns,
	// so dropping the refcon afterwards is safe
	lowlevel.Stop(d.entry.ref)
	d.reg.Unregister()
	d.reg = nil
	d.mw.Log("stopped " + d.path)
	return nil
}

func (d *mtDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}
	_ = d.stopLocked()
	d.closed = true
	d.mw.Log("releasing " + d.path)
	d.b.release(d.path)
	return nil
}
