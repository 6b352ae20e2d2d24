package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

// Package with "core logic" of device listing and handle lifecycle.
//
// The mt package is not imported for efficiency reasons - mt imports
// /mt/lowlevel and /mt/lowlevel uses cgo, so it takes long to build;
// building just this package on its own is fast when we use abstract
// interfaces instead.

// Bus and Device interfaces are implemented in the mt package.

type Bus interface {
	Enumerate() ([]Info, error)
	Open(path string) (Device, error)
	Has(path string) bool
}

// DefaultBus is implemented by backends that can produce the native
// "default device" directly, without enumerating.
type DefaultBus interface {
	Default() (Info, Device, error)
}

// Handler receives one frame batch. The slice holds all records of the
// batch in native order and is only valid for the duration of the call;
// it must not be retained or mutated. Handlers may be invoked from any
// thread, including concurrently for different devices.
type Handler func(device int32, touches []touch.Touch, timestamp float64, frame int32)

// Device is one native device resource.
//
// Property getters are direct read-throughs; the native layer reports
// no structured errors for them, so neither do we. Start installs the
// handler behind the callback bridge and starts event delivery; Stop
// guarantees no future invocations once it returns, but an in-flight
// callback completes naturally. Close releases the native resource
// exactly once.
type Device interface {
	DeviceID() uint64
	FamilyID() int32
	Builtin() bool
	DriverType() int32
	SensorDimensions() (rows, cols int32)
	SurfaceSize() (width, height float64) // centimeters

	Running() bool
	Start(Handler) error
	Stop() error
	Close() error
}

type Info struct {
	Path     string `json:"path"`
	DeviceID uint64 `json:"deviceId"`
	FamilyID int32  `json:"familyId"`
	Builtin  bool   `json:"builtin"`
}

var (
	ErrAlreadyListening = errors.New("device is already listening")
	ErrClosedHandle     = errors.New("closed device handle")
	ErrNilHandler       = errors.New("nil handler")
	ErrAlreadyOpen      = errors.New("device is already open")
	ErrNoDevice         = errors.New("no device available")
)

// EnumerateEntry is one row of an enumeration, as served to consumers.
type EnumerateEntry struct {
	Path     string `json:"path"`
	DeviceID uint64 `json:"deviceId"`
	FamilyID int32  `json:"familyId"`
	Builtin  bool   `json:"builtin"`
	Class    string `json:"class"`
	Running  bool   `json:"running"`
}

type EnumerateEntries []EnumerateEntry

func (entries EnumerateEntries) Len() int {
	return len(entries)
}
func (entries EnumerateEntries) Less(i, j int) bool {
	return entries[i].Path < entries[j].Path
}
func (entries EnumerateEntries) Swap(i, j int) {
	entries[i], entries[j] = entries[j], entries[i]
}

func (entries EnumerateEntries) Sort() {
	sort.Sort(entries)
}

// Core tracks open handles so that every native device identity has at
// most one live owner at a time.
type Core struct {
	bus Bus

	handles      map[string]*Handle
	handlesMutex sync.Mutex // for atomic access to handles

	log *memorywriter.MemoryWriter
}

func New(bus Bus, log *memorywriter.MemoryWriter) *Core {
	return &Core{
		bus:     bus,
		handles: make(map[string]*Handle),
		log:     log,
	}
}

func (c *Core) Log(s string) {
	c.log.Println("core - " + s)
}

// Enumerate lists currently present devices. An empty result is valid
// (no hardware present) and not an error.
func (c *Core) Enumerate() (EnumerateEntries, error) {
	c.Log("enumerate bus")
	infos, err := c.bus.Enumerate()
	if err != nil {
		return nil, err
	}

	c.handlesMutex.Lock()
	defer c.handlesMutex.Unlock()

	entries := make(EnumerateEntries, 0, len(infos))
	for _, info := range infos {
		e := EnumerateEntry{
			Path:     info.Path,
			DeviceID: info.DeviceID,
			FamilyID: info.FamilyID,
			Builtin:  info.Builtin,
			Class:    touch.Classify(info.Builtin, info.FamilyID).String(),
		}
		if h := c.handles[info.Path]; h != nil {
			e.Running = h.Running()
		}
		entries = append(entries, e)
	}
	entries.Sort()
	return entries, nil
}

// Open acquires the device at path. A second Open without a Release in
// between is refused - the native resource identity must have exactly
// one owner.
func (c *Core) Open(path string) (*Handle, error) {
	c.handlesMutex.Lock()
	defer c.handlesMutex.Unlock()

	if prev := c.handles[path]; prev != nil && !prev.Closed() {
		c.Log(fmt.Sprintf("open - %s already open", path))
		return nil, ErrAlreadyOpen
	}

	c.Log(fmt.Sprintf("open - bus open %s", path))
	dev, err := c.bus.Open(path)
	if err != nil {
		return nil, err
	}

	info := infoFromDevice(path, dev)
	h := NewHandle(info, dev, c.log)
	c.handles[path] = h
	return h, nil
}

// Default opens the native default device, used when the caller knows
// there is exactly one relevant device. Falls back to the first
// enumerated device on buses without a native default call.
func (c *Core) Default() (*Handle, error) {
	if db, ok := c.bus.(DefaultBus); ok {
		info, dev, err := db.Default()
		if err == nil {
			c.handlesMutex.Lock()
			defer c.handlesMutex.Unlock()
			if prev := c.handles[info.Path]; prev != nil && !prev.Closed() {
				_ = dev.Close()
				return nil, ErrAlreadyOpen
			}
			h := NewHandle(info, dev, c.log)
			c.handles[info.Path] = h
			return h, nil
		}
		c.Log("default - native default failed, falling back to enumeration: " + err.Error())
	}

	entries, err := c.Enumerate()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoDevice
	}
	return c.Open(entries[0].Path)
}

// Release closes the handle at path and forgets it. Unknown paths are
// a no-op; the caller may have closed the handle directly.
func (c *Core) Release(path string) error {
	c.handlesMutex.Lock()
	h := c.handles[path]
	delete(c.handles, path)
	c.handlesMutex.Unlock()

	if h == nil {
		return nil
	}
	c.Log("release - closing " + path)
	return h.Close()
}

func infoFromDevice(path string, dev Device) Info {
	return Info{
		Path:     path,
		DeviceID: dev.DeviceID(),
		FamilyID: dev.FamilyID(),
		Builtin:  dev.Builtin(),
	}
}
