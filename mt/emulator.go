package mt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

const (
	emulatorPathPrefix = "emulator"
	emulatorNetwork    = "udp"

	// frame datagram: magic, device id, frame counter, timestamp,
	// record count, then count fixed-size records
	emulatorFrameMagic  = "MTFR"
	emulatorFrameHeader = 4 + 4 + 4 + 8 + 4

	emulatorProbeTimeout = 500 * time.Millisecond
)

var (
	emulatorPing  = []byte("PINGPING")
	emulatorPong  = []byte("PONGPONG")
	emulatorStart = []byte("STRTSTRT")
	emulatorStop  = []byte("STOPSTOP")
)

var errEmulatorFrame = errors.New("malformed emulator frame")

// Emulator talks to trackpad emulators over local UDP, one per
// configured port. It reports the same shape of devices as the real
// backend, so everything above the bus works unchanged without
// hardware.
type Emulator struct {
	mw    *memorywriter.MemoryWriter
	ports []int

	mutex sync.Mutex
	open  map[int]bool
}

func InitEmulator(mw *memorywriter.MemoryWriter, ports []int) (*Emulator, error) {
	return &Emulator{
		mw:    mw,
		ports: ports,
		open:  make(map[int]bool),
	}, nil
}

func emulatorPath(port int) string {
	return emulatorPathPrefix + strconv.Itoa(port)
}

func (b *Emulator) Has(path string) bool {
	for _, port := range b.ports {
		if path == emulatorPath(port) {
			return true
		}
	}
	return false
}

func (b *Emulator) Enumerate() ([]core.Info, error) {
	var infos []core.Info

	for _, port := range b.ports {
		b.mutex.Lock()
		open := b.open[port]
		b.mutex.Unlock()

		// an open device owns the socket traffic; trust it is there
		if !open && !b.ping(port) {
			continue
		}
		infos = append(infos, core.Info{
			Path:     emulatorPath(port),
			DeviceID: uint64(port),
			FamilyID: emulatorFamilyID,
			Builtin:  false,
		})
	}
	return infos, nil
}

func (b *Emulator) ping(port int) bool {
	conn, err := net.Dial(emulatorNetwork, "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.Write(emulatorPing); err != nil {
		return false
	}
	if err := conn.SetReadDeadline(time.Now().Add(emulatorProbeTimeout)); err != nil {
		return false
	}

	response := make([]byte, len(emulatorPong))
	if _, err := conn.Read(response); err != nil {
		return false
	}
	return bytes.Equal(response, emulatorPong)
}

func (b *Emulator) Open(path string) (core.Device, error) {
	port := 0
	for _, p := range b.ports {
		if path == emulatorPath(p) {
			port = p
			break
		}
	}
	if port == 0 {
		return nil, ErrNotFound
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.open[port] {
		return nil, core.ErrAlreadyOpen
	}

	conn, err := net.Dial(emulatorNetwork, "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}
	b.open[port] = true
	return &emulatorDevice{b: b, port: port, conn: conn.(*net.UDPConn), mw: b.mw}, nil
}

func (b *Emulator) forget(port int) {
	b.mutex.Lock()
	delete(b.open, port)
	b.mutex.Unlock()
}

// fixed properties reported for every emulated device; the values match
// an external Magic Trackpad
const (
	emulatorFamilyID      int32 = 128
	emulatorSensorRows    int32 = 23
	emulatorSensorCols    int32 = 32
	emulatorSurfaceWidth        = 16.0
	emulatorSurfaceHeight       = 11.49
)

type emulatorDevice struct {
	b    *Emulator
	port int
	conn *net.UDPConn
	mw   *memorywriter.MemoryWriter

	mutex   sync.Mutex
	running bool
	closed  bool
	done    chan struct{}
}

func (d *emulatorDevice) DeviceID() uint64 { return uint64(d.port) }
func (d *emulatorDevice) FamilyID() int32 { return emulatorFamilyID }
func (d *emulatorDevice) Builtin() bool { return false }
func (d *emulatorDevice) DriverType() int32 {
	return 4
}

func (d *emulatorDevice) SensorDimensions() (rows, cols int32) {
	return emulatorSensorRows, emulatorSensorCols
}

func (d *emulatorDevice) SurfaceSize() (width, height float64) {
	return emulatorSurfaceWidth, emulatorSurfaceHeight
}

func (d *emulatorDevice) Running() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.running
}

func (d *emulatorDevice) Start(fn core.Handler) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return errClosedDevice
	}
	if d.running {
		return core.ErrAlreadyListening
	}
	if _, err := d.conn.Write(emulatorStart); err != nil {
		return err
	}
	d.running = true
	d.done = make(chan struct{})
	go d.readLoop(fn, d.done)
	d.mw.Log("emulator started " + emulatorPath(d.port))
	return nil
}

func (d *emulatorDevice) readLoop(fn core.Handler, done chan struct{}) {
	buf := make([]byte, 65536)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			select {
			case <-done:
			default:
				d.mw.Log("emulator read error " + err.Error())
			}
			return
		}
		device, touches, timestamp, frame, err := decodeEmulatorFrame(buf[:n])
		if err != nil {
			d.mw.Log("emulator " + err.Error())
			continue
		}
		core.Dispatch(d.mw, fn, device, touches, timestamp, frame)
	}
}

func decodeEmulatorFrame(data []byte) (device int32, touches []touch.Touch, timestamp float64, frame int32, err error) {
	if len(data) < emulatorFrameHeader || string(data[:4]) != emulatorFrameMagic {
		return 0, nil, 0, 0, errEmulatorFrame
	}
	device = int32(binary.LittleEndian.Uint32(data[4:]))
	frame = int32(binary.LittleEndian.Uint32(data[8:]))
	timestamp = math.Float64frombits(binary.LittleEndian.Uint64(data[12:]))
	count := int(int32(binary.LittleEndian.Uint32(data[20:])))
	if count < 0 || len(data) < emulatorFrameHeader+count*touch.RecordSize {
		return 0, nil, 0, 0, errEmulatorFrame
	}
	touches, err = touch.DecodeBatch(data[emulatorFrameHeader:], count)
	if err != nil {
		return 0, nil, 0, 0, fmt.Errorf("frame decode: %w", err)
	}
	return device, touches, timestamp, frame, nil
}

func (d *emulatorDevice) Stop() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stopLocked()
}

func (d *emulatorDevice) stopLocked() error {
	if !d.running {
		return nil
	}
	d.running = false
	close(d.done)
	if _, err := d.conn.Write(emulatorStop); err != nil {
		d.mw.Log("emulator stop write " + err.Error())
	}
	// unblock the read loop
	if err := d.conn.SetReadDeadline(time.Now()); err == nil {
		defer d.conn.SetReadDeadline(time.Time{}) //nolint:errcheck
	}
	d.mw.Log("emulator stopped " + emulatorPath(d.port))
	return nil
}

func (d *emulatorDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}
	_ = d.stopLocked()
	d.closed = true
	err := d.conn.Close()
	d.b.forget(d.port)
	return err
}
