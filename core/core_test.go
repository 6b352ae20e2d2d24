package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

func testLog(t *testing.T) *memorywriter.MemoryWriter {
	t.Helper()
	m, err := memorywriter.New(200, 20, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// fakeDevice stands in for a native device. Its emit method plays the
// role of the native subsystem invoking the callback bridge.
type fakeDevice struct {
	mutex    sync.Mutex
	id       uint64
	family   int32
	builtin  bool
	handler  Handler
	running  bool
	closes   int
	startErr error
	lazy     bool // native says "not running" right after start
}

func (d *fakeDevice) DeviceID() uint64  { return d.id }
func (d *fakeDevice) FamilyID() int32   { return d.family }
func (d *fakeDevice) Builtin() bool     { return d.builtin }
func (d *fakeDevice) DriverType() int32 { return 4 }

func (d *fakeDevice) SensorDimensions() (int32, int32) { return 12, 30 }
func (d *fakeDevice) SurfaceSize() (float64, float64)  { return 10.5, 7.605 }

func (d *fakeDevice) Running() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.running
}

func (d *fakeDevice) Start(fn Handler) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.handler = fn
	d.running = !d.lazy
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handler = nil
	d.running = false
	return nil
}

func (d *fakeDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) emit(touches []touch.Touch, timestamp float64, frame int32) int32 {
	d.mutex.Lock()
	fn := d.handler
	d.mutex.Unlock()
	return Dispatch(nil, fn, int32(d.id), touches, timestamp, frame)
}

type fakeBus struct {
	devices map[string]*fakeDevice
}

func (b *fakeBus) Enumerate() ([]Info, error) {
	var infos []Info
	for path, d := range b.devices {
		infos = append(infos, Info{Path: path, DeviceID: d.id, FamilyID: d.family, Builtin: d.builtin})
	}
	return infos, nil
}

func (b *fakeBus) Open(path string) (Device, error) {
	d := b.devices[path]
	if d == nil {
		return nil, errors.New("device not found")
	}
	return d, nil
}

func (b *fakeBus) Has(path string) bool {
	return b.devices[path] != nil
}

func batch(n int) []touch.Touch {
	touches := make([]touch.Touch, n)
	for i := range touches {
		touches[i].FingerID = int32(i)
		touches[i].Identifier = int32(100 + i)
		touches[i].State = touch.Touching
	}
	return touches
}

func newHandle(d *fakeDevice) *Handle {
	return NewHandle(Info{Path: "fake", DeviceID: d.id, FamilyID: d.family, Builtin: d.builtin}, d, nil)
}

func TestListenDeliversBatchInOrder(t *testing.T) {
	d := &fakeDevice{id: 1, builtin: true}
	h := newHandle(d)

	var calls int
	var got []touch.Touch
	err := h.Listen(func(device int32, touches []touch.Touch, timestamp float64, frame int32) {
		calls++
		got = append([]touch.Touch(nil), touches...)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !h.Running() {
		t.Fatal("handle should be running after listen")
	}

	if rc := d.emit(batch(3), 1.5, 9); rc != FrameOK {
		t.Fatalf("emit rc = %d, want %d", rc, FrameOK)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	for i, tt := range got {
		if tt.FingerID != int32(i) {
			t.Errorf("record %d has finger id %d, order not preserved", i, tt.FingerID)
		}
	}
}

func TestListenTwiceFails(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)

	var first int
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) { first++ }); err != nil {
		t.Fatal(err)
	}
	err := h.Listen(func(int32, []touch.Touch, float64, int32) { t.Error("second handler must never run") })
	if err != ErrAlreadyListening {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}

	// first registration is unaffected
	d.emit(batch(1), 0, 1)
	if first != 1 {
		t.Errorf("first handler called %d times, want 1", first)
	}
}

func TestStopThenListenNewHandler(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)

	var old, new_ int
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) { old++ }); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) { new_++ }); err != nil {
		t.Fatal(err)
	}
	d.emit(batch(1), 0, 1)
	if old != 0 {
		t.Errorf("old handler received %d batches after stop", old)
	}
	if new_ != 1 {
		t.Errorf("new handler received %d batches, want 1", new_)
	}
}

func TestStopIdempotent(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) {}); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestCloseReleasesOnce(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) {}); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if d.closes != 1 {
		t.Errorf("native close called %d times, want exactly 1", d.closes)
	}
	if d.Running() {
		t.Error("device still running after close")
	}
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) {}); err != ErrClosedHandle {
		t.Errorf("expected ErrClosedHandle after close, got %v", err)
	}
}

func TestRunningMirrorsDevice(t *testing.T) {
	d := &fakeDevice{id: 1, lazy: true}
	h := newHandle(d)
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) {}); err != nil {
		t.Fatal(err)
	}
	if h.Running() {
		t.Error("handle claims running although the device says it is not")
	}
}

func TestPanicContained(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)

	var delivered int
	panicOnce := true
	err := h.Listen(func(int32, []touch.Touch, float64, int32) {
		if panicOnce {
			panicOnce = false
			panic("user handler exploded")
		}
		delivered++
	})
	if err != nil {
		t.Fatal(err)
	}

	if rc := d.emit(batch(1), 0, 1); rc != FrameAbort {
		t.Fatalf("panicking batch rc = %d, want %d", rc, FrameAbort)
	}
	// batch N+1 still arrives
	if rc := d.emit(batch(1), 0, 2); rc != FrameOK {
		t.Fatalf("next batch rc = %d, want %d", rc, FrameOK)
	}
	if delivered != 1 {
		t.Errorf("batch after panic delivered %d times, want 1", delivered)
	}
}

func TestPanicDoesNotAffectOtherDevice(t *testing.T) {
	bad := &fakeDevice{id: 1}
	good := &fakeDevice{id: 2}
	hBad := newHandle(bad)
	hGood := newHandle(good)

	if err := hBad.Listen(func(int32, []touch.Touch, float64, int32) { panic("boom") }); err != nil {
		t.Fatal(err)
	}
	var goodBatches int32
	if err := hGood.Listen(func(int32, []touch.Touch, float64, int32) { atomic.AddInt32(&goodBatches, 1) }); err != nil {
		t.Fatal(err)
	}

	// concurrent deliveries, as the native subsystem would do
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(frame int32) {
			defer wg.Done()
			bad.emit(batch(1), 0, frame)
		}(int32(i))
		go func(frame int32) {
			defer wg.Done()
			good.emit(batch(1), 0, frame)
		}(int32(i))
	}
	wg.Wait()

	if n := atomic.LoadInt32(&goodBatches); n != 10 {
		t.Errorf("good device received %d batches, want 10", n)
	}
	if !hGood.Running() {
		t.Error("good device stopped running")
	}
}

func TestZeroCountBatch(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	var calls int
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) { calls++ }); err != nil {
		t.Fatal(err)
	}
	if rc := d.emit(nil, 0, 1); rc != FrameOK {
		t.Fatalf("zero batch rc = %d, want %d", rc, FrameOK)
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times for zero-count batch", calls)
	}
}

func TestStreamPerRecordOrder(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)

	ch, err := h.Stream(16)
	if err != nil {
		t.Fatal(err)
	}
	d.emit(batch(3), 0, 1)

	for i := 0; i < 3; i++ {
		select {
		case tt := <-ch:
			if tt.FingerID != int32(i) {
				t.Errorf("message %d carries finger %d, order not preserved", i, tt.FingerID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for streamed record")
		}
	}

	if err := h.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after stop")
	}
}

func TestStreamZeroBatchEnqueuesNothing(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	ch, err := h.Stream(4)
	if err != nil {
		t.Fatal(err)
	}
	d.emit(nil, 0, 1)
	select {
	case tt := <-ch:
		t.Errorf("unexpected record %v for zero-count batch", tt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamOverflowDrops(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	ch, err := h.Stream(1)
	if err != nil {
		t.Fatal(err)
	}
	// nobody reads yet; only one record fits
	d.emit(batch(3), 0, 1)
	if got := h.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
	if tt := <-ch; tt.FingerID != 0 {
		t.Errorf("surviving record is finger %d, want 0", tt.FingerID)
	}
}

func TestStreamWhileListening(t *testing.T) {
	d := &fakeDevice{id: 1}
	h := newHandle(d)
	if err := h.Listen(func(int32, []touch.Touch, float64, int32) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Stream(4); err != ErrAlreadyListening {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestCoreEnumerateEmpty(t *testing.T) {
	c := New(&fakeBus{devices: map[string]*fakeDevice{}}, testLog(t))
	entries, err := c.Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestCoreEnumerateClassifies(t *testing.T) {
	bus := &fakeBus{devices: map[string]*fakeDevice{
		"b": {id: 2, family: 112},
		"a": {id: 1, builtin: true},
	}}
	c := New(bus, testLog(t))
	entries, err := c.Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// sorted by path
	if entries[0].Path != "a" || entries[1].Path != "b" {
		t.Fatalf("entries not sorted: %+v", entries)
	}
	if entries[0].Class != "internal-trackpad" {
		t.Errorf("builtin device classified as %q", entries[0].Class)
	}
	if entries[1].Class != "magic-mouse" {
		t.Errorf("family 112 classified as %q", entries[1].Class)
	}
}

func TestCoreOpenTwice(t *testing.T) {
	bus := &fakeBus{devices: map[string]*fakeDevice{"a": {id: 1}}}
	c := New(bus, testLog(t))

	h, err := c.Open("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Open("a"); err != ErrAlreadyOpen {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
	if err := c.Release("a"); err != nil {
		t.Fatal(err)
	}
	if !h.Closed() {
		t.Error("release did not close the handle")
	}
	if _, err := c.Open("a"); err != nil {
		t.Fatalf("reopen after release failed: %v", err)
	}
}

func TestCoreDefaultFallsBack(t *testing.T) {
	bus := &fakeBus{devices: map[string]*fakeDevice{"only": {id: 1, builtin: true}}}
	c := New(bus, testLog(t))
	h, err := c.Default()
	if err != nil {
		t.Fatal(err)
	}
	if h.Class().Kind != touch.KindInternalTrackpad {
		t.Errorf("default device classified as %v", h.Class())
	}
}

func TestCoreDefaultNoDevices(t *testing.T) {
	c := New(&fakeBus{devices: map[string]*fakeDevice{}}, testLog(t))
	if _, err := c.Default(); err != ErrNoDevice {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}

func TestEnumerateEntriesSort(t *testing.T) {
	entries := EnumerateEntries{
		{Path: "b"},
		{Path: "a"},
		{Path: "ab"},
	}
	entries.Sort()
	if entries[0].Path != "a" || entries[1].Path != "ab" {
		t.Errorf("sort did not work well, result: %v", entries)
	}
}
