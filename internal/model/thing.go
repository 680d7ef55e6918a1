package model

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// JavaThing is any node of the graph: a primitive value, a deferred
// reference or a heap object.
type JavaThing interface {
	// Size is the byte size; 0 for primitive values.
	Size() int64
	IsHeapAllocated() bool
	String() string
}

// Compare orders things for display and tie-breaking. Heap objects order by
// id, anything else by its string form.
func Compare(a, b JavaThing) int {
	ah, aok := a.(JavaHeapObject)
	bh, bok := b.(JavaHeapObject)
	if aok && bok {
		return cmp.Compare(ah.ID(), bh.ID())
	}
	return strings.Compare(a.String(), b.String())
}

type primitive struct{}

func (primitive) Size() int64 { return 0 }
func (primitive) IsHeapAllocated() bool { return false }

// JavaBoolean is a boolean field or element.
type JavaBoolean struct {
	primitive
	Value bool
}

func (v JavaBoolean) String() string { return strconv.FormatBool(v.Value) }

// JavaByte is a byte field or element.
type JavaByte struct {
	primitive
	Value int8
}

func (v JavaByte) String() string { return fmt.Sprintf("0x%x", uint8(v.Value)) }

// JavaChar is a UTF-16 code unit.
type JavaChar struct {
	primitive
	Value uint16
}

func (v JavaChar) String() string {
	if utf16.IsSurrogate(rune(v.Value)) {
		return escapeUnit(v.Value)
	}
	return string(rune(v.Value))
}

// decodeUTF16 renders big-endian UTF-16 code units as text. A surrogate
// without its pair is written as a \uXXXX escape so the raw unit survives.
func decodeUTF16(data []byte) string {
	n := len(data) / 2
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		u := binary.BigEndian.Uint16(data[2*i:])
		if !utf16.IsSurrogate(rune(u)) {
			sb.WriteRune(rune(u))
			continue
		}
		if i+1 < n {
			next := binary.BigEndian.Uint16(data[2*i+2:])
			if r := utf16.DecodeRune(rune(u), rune(next)); r != '\uFFFD' {
				sb.WriteRune(r)
				i++
				continue
			}
		}
		sb.WriteString(escapeUnit(u))
	}
	return sb.String()
}

func escapeUnit(u uint16) string { return fmt.Sprintf("\\u%04X", u) }

// JavaShort is a short field or element.
type JavaShort struct {
	primitive
	Value int16
}

func (v JavaShort) String() string { return strconv.FormatInt(int64(v.Value), 10) }

// JavaInt is an int field or element.
type JavaInt struct {
	primitive
	Value int32
}

func (v JavaInt) String() string { return strconv.FormatInt(int64(v.Value), 10) }

// JavaLong is a long field or element.
type JavaLong struct {
	primitive
	Value int64
}

func (v JavaLong) String() string { return strconv.FormatInt(v.Value, 10) }

// JavaFloat is a float field or element.
type JavaFloat struct {
	primitive
	Value float32
}

func (v JavaFloat) String() string { return strconv.FormatFloat(float64(v.Value), 'g', -1, 32) }

// JavaDouble is a double field or element.
type JavaDouble struct {
	primitive
	Value float64
}

func (v JavaDouble) String() string { return strconv.FormatFloat(v.Value, 'g', -1, 64) }

// HackJavaValue is a placeholder with a fixed description. The snapshot's
// null thing and unresolved references are HackJavaValues.
type HackJavaValue struct {
	value string
	size  int64
}

// NewHackJavaValue creates a placeholder value.
func NewHackJavaValue(value string, size int64) *HackJavaValue {
	return &HackJavaValue{value: value, size: size}
}

func (h *HackJavaValue) Size() int64 { return h.size }
func (h *HackJavaValue) IsHeapAllocated() bool { return false }
func (h *HackJavaValue) String() string { return h.value }
