package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
)

// hprof basic types.
const (
	TypeObject  byte = 2
	TypeBoolean byte = 4
	TypeChar    byte = 5
	TypeFloat   byte = 6
	TypeDouble  byte = 7
	TypeByte    byte = 8
	TypeShort   byte = 9
	TypeInt     byte = 10
	TypeLong    byte = 11
)

// Writer appends big-endian values.
type Writer struct {
	buf    bytes.Buffer
	idSize int
}

// NewWriter creates a writer for ids of idSize bytes.
func NewWriter(idSize int) *Writer {
	return &Writer{idSize: idSize}
}

// IDSize returns the id width.
func (w *Writer) IDSize() int { return w.idSize }

// Len returns the number of bytes written.
func (w *Writer) Len() int64 { return int64(w.buf.Len()) }

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) U1(v byte) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) U2(v uint16) *Writer {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *Writer) U4(v uint32) *Writer {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

func (w *Writer) U8(v uint64) *Writer {
	_ = binary.Write(&w.buf, binary.BigEndian, v)
	return w
}

// ID writes an identifier of the writer's width.
func (w *Writer) ID(v uint64) *Writer {
	if w.idSize == 4 {
		return w.U4(uint32(v))
	}
	return w.U8(v)
}

func (w *Writer) Raw(p []byte) *Writer {
	w.buf.Write(p)
	return w
}

// Values encodes field or element values.
type Values struct {
	w *Writer
}

// NewValues starts an empty value list.
func NewValues(idSize int) *Values {
	return &Values{w: NewWriter(idSize)}
}

func (v *Values) Bool(b bool) *Values {
	if b {
		v.w.U1(1)
	} else {
		v.w.U1(0)
	}
	return v
}

func (v *Values) Byte(b int8) *Values {
	v.w.U1(byte(b))
	return v
}

func (v *Values) Char(c uint16) *Values {
	v.w.U2(c)
	return v
}

func (v *Values) Short(s int16) *Values {
	v.w.U2(uint16(s))
	return v
}

func (v *Values) Int(i int32) *Values {
	v.w.U4(uint32(i))
	return v
}

func (v *Values) Long(l int64) *Values {
	v.w.U8(uint64(l))
	return v
}

func (v *Values) Float(f float32) *Values {
	v.w.U4(math.Float32bits(f))
	return v
}

func (v *Values) Double(d float64) *Values {
	v.w.U8(math.Float64bits(d))
	return v
}

func (v *Values) ID(id uint64) *Values {
	v.w.ID(id)
	return v
}

// Chars encodes s as UTF-16 code units.
func (v *Values) Chars(s string) *Values {
	for _, r := range s {
		v.w.U2(uint16(r))
	}
	return v
}

// Bytes returns the encoded values.
func (v *Values) Bytes() []byte { return v.w.Bytes() }

// InstanceDump writes an instance sub-record and returns the offset of its
// id.
func (w *Writer) InstanceDump(id uint64, serial uint32, classID uint64, data []byte) int64 {
	w.U1(0x21)
	off := w.Len()
	w.ID(id).U4(serial).ID(classID).U4(uint32(len(data))).Raw(data)
	return off
}

// ObjectArrayDump writes an object array sub-record.
func (w *Writer) ObjectArrayDump(id uint64, serial uint32, classID uint64, elements []uint64) int64 {
	w.U1(0x22)
	off := w.Len()
	w.ID(id).U4(serial).U4(uint32(len(elements))).ID(classID)
	for _, e := range elements {
		w.ID(e)
	}
	return off
}

// PrimitiveArrayDump writes a primitive array sub-record holding count
// elements of elemType encoded in data.
func (w *Writer) PrimitiveArrayDump(id uint64, serial uint32, elemType byte, count uint32, data []byte) int64 {
	w.U1(0x23)
	off := w.Len()
	w.ID(id).U4(serial).U4(count).U1(elemType).Raw(data)
	return off
}
