package mt

import (
	"bytes"
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
	"github.com/DeepSignSecurity/trackpad-go/touch"
)

func testLog(t *testing.T) *memorywriter.MemoryWriter {
	t.Helper()
	mw, err := memorywriter.New(2000, 200, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	return mw
}

func sampleTouches() []touch.Touch {
	return []touch.Touch{
		{
			Frame:      7,
			Timestamp:  1.25,
			Identifier: 1,
			State:      touch.Touching,
			FingerID:   1,
			HandID:     1,
			Normalized: touch.Vector{
				Pos: touch.Point{X: 0.5, Y: 0.5},
			},
			ZTotal:   0.4,
			ZDensity: 0.2,
		},
		{
			Frame:      7,
			Timestamp:  1.25,
			Identifier: 2,
			State:      touch.MakeTouch,
			FingerID:   2,
			HandID:     1,
		},
	}
}

func encodeFrame(device, frame int32, timestamp float64, touches []touch.Touch) []byte {
	data := []byte(emulatorFrameMagic)
	data = binary.LittleEndian.AppendUint32(data, uint32(device))
	data = binary.LittleEndian.AppendUint32(data, uint32(frame))
	data = binary.LittleEndian.AppendUint64(data, math.Float64bits(timestamp))
	data = binary.LittleEndian.AppendUint32(data, uint32(len(touches)))
	return touch.AppendBatch(data, touches)
}

// fakeEmulator answers the probe and streams one frame on start.
func fakeEmulator(t *testing.T, touches []touch.Touch) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			switch {
			case bytes.Equal(buf[:n], emulatorPing):
				_, _ = conn.WriteToUDP(emulatorPong, addr)
			case bytes.Equal(buf[:n], emulatorStart):
				_, _ = conn.WriteToUDP(encodeFrame(3, 42, 0.5, touches), addr)
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestEmulatorEnumerateAndListen(t *testing.T) {
	want := sampleTouches()
	port := fakeEmulator(t, want)

	b, err := InitEmulator(testLog(t), []int{port})
	if err != nil {
		t.Fatal(err)
	}

	infos, err := b.Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("enumerate returned %d devices, want 1", len(infos))
	}
	info := infos[0]
	if info.Path != emulatorPath(port) {
		t.Errorf("path = %q", info.Path)
	}
	if info.FamilyID != emulatorFamilyID || info.Builtin {
		t.Errorf("info = %+v", info)
	}
	if !b.Has(info.Path) {
		t.Error("Has(path) = false")
	}

	dev, err := b.Open(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	type batch struct {
		device  int32
		touches []touch.Touch
		frame   int32
	}
	got := make(chan batch, 1)
	err = dev.Start(func(device int32, touches []touch.Touch, timestamp float64, frame int32) {
		cp := make([]touch.Touch, len(touches))
		copy(cp, touches)
		select {
		case got <- batch{device: device, touches: cp, frame: frame}:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if !dev.Running() {
		t.Error("Running() = false after start")
	}

	select {
	case b := <-got:
		if b.device != 3 || b.frame != 42 {
			t.Errorf("device %d frame %d, want 3 42", b.device, b.frame)
		}
		if len(b.touches) != len(want) {
			t.Fatalf("got %d touches, want %d", len(b.touches), len(want))
		}
		if b.touches[0] != want[0] || b.touches[1] != want[1] {
			t.Errorf("touches differ: %+v", b.touches)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	if err := dev.Stop(); err != nil {
		t.Fatal(err)
	}
	if dev.Running() {
		t.Error("Running() = true after stop")
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEmulatorOpenTwice(t *testing.T) {
	port := fakeEmulator(t, nil)

	b, err := InitEmulator(testLog(t), []int{port})
	if err != nil {
		t.Fatal(err)
	}
	dev, err := b.Open(emulatorPath(port))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(emulatorPath(port)); err == nil {
		t.Error("second open succeeded")
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(emulatorPath(port)); err != nil {
		t.Errorf("reopen after close: %v", err)
	}
}

func TestEmulatorEnumerateAbsent(t *testing.T) {
	// nothing listens here
	b, err := InitEmulator(testLog(t), []int{1})
	if err != nil {
		t.Fatal(err)
	}
	infos, err := b.Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("enumerate returned %d devices, want 0", len(infos))
	}
}

func TestDecodeEmulatorFrameErrors(t *testing.T) {
	if _, _, _, _, err := decodeEmulatorFrame([]byte("nope")); err == nil {
		t.Error("short datagram accepted")
	}
	bad := encodeFrame(1, 1, 0, sampleTouches())
	copy(bad, "XXXX")
	if _, _, _, _, err := decodeEmulatorFrame(bad); err == nil {
		t.Error("bad magic accepted")
	}
	truncated := encodeFrame(1, 1, 0, sampleTouches())
	if _, _, _, _, err := decodeEmulatorFrame(truncated[:len(truncated)-1]); err == nil {
		t.Error("truncated records accepted")
	}
}
