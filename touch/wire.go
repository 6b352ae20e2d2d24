package touch

import (
	"encoding/binary"
	"errors"
	"math"
)

// Wire codec for Touch records, used by the UDP emulator transport.
// Fields are encoded little-endian in struct order, without the
// alignment hole, so one record is exactly RecordSize bytes.

// RecordSize is the encoded size of one Touch record.
const RecordSize = 92

var ErrShortRecord = errors.New("touch record too short")

// AppendRecord appends the wire encoding of t to dst.
func AppendRecord(dst []byte, t *Touch) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.Frame))
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(t.Timestamp))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.Identifier))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.State))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.FingerID))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.HandID))
	dst = appendVector(dst, &t.Normalized)
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.ZTotal))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.Unknown3))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.Angle))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.MajorAxis))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.MinorAxis))
	dst = appendVector(dst, &t.Absolute)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.Unknown4))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(t.Unknown5))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(t.ZDensity))
	return dst
}

func appendVector(dst []byte, v *Vector) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Pos.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Pos.Y))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Vel.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Vel.Y))
	return dst
}

// DecodeRecord decodes one Touch record from the start of buf.
func DecodeRecord(buf []byte) (Touch, error) {
	var t Touch
	if len(buf) < RecordSize {
		return t, ErrShortRecord
	}
	t.Frame = int32(binary.LittleEndian.Uint32(buf[0:]))
	t.Timestamp = math.Float64frombits(binary.LittleEndian.Uint64(buf[4:]))
	t.Identifier = int32(binary.LittleEndian.Uint32(buf[12:]))
	t.State = State(binary.LittleEndian.Uint32(buf[16:]))
	t.FingerID = int32(binary.LittleEndian.Uint32(buf[20:]))
	t.HandID = int32(binary.LittleEndian.Uint32(buf[24:]))
	decodeVector(buf[28:], &t.Normalized)
	t.ZTotal = math.Float32frombits(binary.LittleEndian.Uint32(buf[44:]))
	t.Unknown3 = int32(binary.LittleEndian.Uint32(buf[48:]))
	t.Angle = math.Float32frombits(binary.LittleEndian.Uint32(buf[52:]))
	t.MajorAxis = math.Float32frombits(binary.LittleEndian.Uint32(buf[56:]))
	t.MinorAxis = math.Float32frombits(binary.LittleEndian.Uint32(buf[60:]))
	decodeVector(buf[64:], &t.Absolute)
	t.Unknown4 = int32(binary.LittleEndian.Uint32(buf[80:]))
	t.Unknown5 = int32(binary.LittleEndian.Uint32(buf[84:]))
	t.ZDensity = math.Float32frombits(binary.LittleEndian.Uint32(buf[88:]))
	return t, nil
}

func decodeVector(buf []byte, v *Vector) {
	v.Pos.X = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))
	v.Pos.Y = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	v.Vel.X = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))
	v.Vel.Y = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:]))
}

// AppendBatch appends count records in order.
func AppendBatch(dst []byte, touches []Touch) []byte {
	for i := range touches {
		dst = AppendRecord(dst, &touches[i])
	}
	return dst
}

// DecodeBatch decodes exactly count records from buf, preserving order.
func DecodeBatch(buf []byte, count int) ([]Touch, error) {
	if count < 0 || len(buf) < count*RecordSize {
		return nil, ErrShortRecord
	}
	touches := make([]Touch, 0, count)
	for i := 0; i < count; i++ {
		t, err := DecodeRecord(buf[i*RecordSize:])
		if err != nil {
			return nil, err
		}
		touches = append(touches, t)
	}
	return touches, nil
}
