package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JavaObjectArray is an array of references.
type JavaObjectArray struct {
	lazyObject
	// classID is the array class with new-style dumps and the element
	// class with old ones.
	classID ID
	clazz   *JavaClass
}

func (a *JavaObjectArray) Kind() Kind { return KindObjectArray }
func (a *JavaObjectArray) Clazz() *JavaClass { return a.clazz }

// Object array record: id, stack trace serial (4), length (4), class id,
// elements.
func (a *JavaObjectArray) lengthOffset() int64 { return a.offset + int64(a.snap.idSize) + 4 }
func (a *JavaObjectArray) dataOffset() int64 { return a.offset + 2*int64(a.snap.idSize) + 8 }

// Length is the declared element count.
func (a *JavaObjectArray) Length() int {
	return int(a.readLength(a.lengthOffset()))
}

// ValueLength is the byte length of the elements.
func (a *JavaObjectArray) ValueLength() int64 {
	return int64(a.Length()) * int64(a.snap.idSize)
}

func (a *JavaObjectArray) Size() int64 {
	return a.ValueLength() + a.snap.minimumObjectSize
}

// Resolve finds the array class. Without a usable class id it derives an
// array class from the element class, and failing that uses the shared
// placeholder array type.
func (a *JavaObjectArray) Resolve() {
	if a.clazz != nil {
		return
	}
	s := a.snap
	t := s.FindThing(a.classID)
	if s.newStyleArrayClass {
		if c, ok := t.(*JavaClass); ok {
			a.clazz = c
		}
	}
	if a.clazz == nil {
		if el, ok := t.(*JavaClass); ok {
			name := el.Name()
			if !strings.HasPrefix(name, "[") {
				name = "L" + name + ";"
			}
			a.clazz = s.ArrayClass(name)
		}
	}
	if a.clazz == nil {
		s.logger.Warn("Array class %s not found, using %s", a.classID.Hex(), otherArrayTypeName)
		a.clazz = s.OtherArrayType()
	}
	a.clazz.addInstance(a)
	s.resolveSiteTrace(a)
}

// Elements returns the referenced objects; ids that do not resolve are
// nil. A decode failure yields an empty slice.
func (a *JavaObjectArray) Elements() []JavaHeapObject {
	s := a.snap
	n := a.Length()
	data, err := s.readPayload(a.dataOffset(), int64(n)*int64(s.idSize))
	if err != nil {
		s.logger.Error("Failed to read elements of array at offset %d: %v", a.offset, err)
		return []JavaHeapObject{}
	}
	out := make([]JavaHeapObject, n)
	for i := range out {
		id := decodeID(data[i*s.idSize : (i+1)*s.idSize])
		if id != 0 {
			out[i] = s.FindThing(id)
		}
	}
	return out
}

func (a *JavaObjectArray) String() string { return heapObjectString(a) }

// DescribeReferenceTo names the element holding target.
func (a *JavaObjectArray) DescribeReferenceTo(target JavaThing) string {
	for i, e := range a.Elements() {
		if e != nil && JavaThing(e) == target {
			return fmt.Sprintf("Element %d of %s", i, a)
		}
	}
	return describeUnknownReference()
}

func (a *JavaObjectArray) RefersOnlyWeaklyTo(JavaThing) bool { return false }
func (a *JavaObjectArray) Root() *Root { return a.snap.rootOf(a) }
func (a *JavaObjectArray) IsNew() bool { return a.snap.IsNewObject(a) }
func (a *JavaObjectArray) SiteTrace() *StackTrace { return a.snap.SiteTrace(a) }

// JavaValueArray is an array of primitives. The element type is read from
// the record.
type JavaValueArray struct {
	lazyObject
	clazz *JavaClass
}

func (a *JavaValueArray) Kind() Kind { return KindValueArray }
func (a *JavaValueArray) Clazz() *JavaClass { return a.clazz }

// Value array record: id, stack trace serial (4), length (4), type (1),
// data.
func (a *JavaValueArray) lengthOffset() int64 { return a.offset + int64(a.snap.idSize) + 4 }
func (a *JavaValueArray) typeOffset() int64 { return a.offset + int64(a.snap.idSize) + 8 }
func (a *JavaValueArray) dataOffset() int64 { return a.offset + int64(a.snap.idSize) + 9 }

// ElementSignature returns the element type character, 0 if unreadable.
func (a *JavaValueArray) ElementSignature() byte {
	t, err := a.snap.buf.GetByte(a.typeOffset())
	if err != nil {
		a.snap.logger.Error("Failed to read element type at offset %d: %v", a.typeOffset(), err)
		return 0
	}
	return BasicType(t).Signature()
}

// Length is the declared element count.
func (a *JavaValueArray) Length() int {
	return int(a.readLength(a.lengthOffset()))
}

// ValueLength is Length times the element width.
func (a *JavaValueArray) ValueLength() int64 {
	return int64(a.Length()) * int64(SignatureWidth(a.ElementSignature(), a.snap.idSize))
}

func (a *JavaValueArray) Size() int64 {
	return a.ValueLength() + a.snap.minimumObjectSize
}

// Resolve finds the "[<sig>" class, creating it when the dump lacks it.
func (a *JavaValueArray) Resolve() {
	if a.clazz != nil {
		return
	}
	s := a.snap
	sig := a.ElementSignature()
	switch {
	case sig == 0:
		a.clazz = s.OtherArrayType()
	default:
		a.clazz = s.FindClass("[" + string(sig))
		if a.clazz == nil {
			a.clazz = s.ArrayClass(string(sig))
		}
	}
	a.clazz.addInstance(a)
	s.resolveSiteTrace(a)
}

// payload returns the raw element bytes, empty on failure.
func (a *JavaValueArray) payload() []byte {
	data, err := a.snap.readPayload(a.dataOffset(), a.ValueLength())
	if err != nil {
		a.snap.logger.Error("Failed to read elements of array at offset %d: %v", a.offset, err)
		return nil
	}
	return data
}

// Elements decodes every element into its primitive wrapper.
func (a *JavaValueArray) Elements() []JavaThing {
	sig := a.ElementSignature()
	width := SignatureWidth(sig, a.snap.idSize)
	data := a.payload()
	if width == 0 || len(data) == 0 {
		return []JavaThing{}
	}
	field := &JavaField{signature: string(sig)}
	out := make([]JavaThing, len(data)/width)
	for i := range out {
		out[i] = decodeValue(a.snap, field, data[i*width:(i+1)*width], false)
	}
	return out
}

// ValueString renders a char array as text. Other arrays render as
// "{v1, v2, ...}" holding up to 8 elements, or 1000 with bigLimit.
func (a *JavaValueArray) ValueString(bigLimit bool) string {
	sig := a.ElementSignature()
	data := a.payload()
	if sig == 'C' {
		return decodeUTF16(data)
	}

	limit := 8
	if bigLimit {
		limit = 1000
	}
	width := SignatureWidth(sig, a.snap.idSize)
	var sb strings.Builder
	sb.WriteString("{")
	for num, i := 0, 0; width > 0 && i+width <= len(data); num, i = num+1, i+width {
		if num > 0 {
			sb.WriteString(", ")
		}
		if num >= limit {
			sb.WriteString("... ")
			break
		}
		sb.WriteString(formatElement(sig, data[i:i+width]))
	}
	sb.WriteString("}")
	return sb.String()
}

func formatElement(sig byte, b []byte) string {
	switch sig {
	case 'Z':
		return strconv.FormatBool(b[0] != 0)
	case 'B':
		return "0x" + strconv.FormatUint(uint64(b[0]), 16)
	case 'S':
		return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(b))), 10)
	case 'I':
		return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(b))), 10)
	case 'J':
		return strconv.FormatInt(int64(binary.BigEndian.Uint64(b)), 10)
	case 'F':
		return strconv.FormatFloat(float64(math.Float32frombits(binary.BigEndian.Uint32(b))), 'g', -1, 32)
	case 'D':
		return strconv.FormatFloat(math.Float64frombits(binary.BigEndian.Uint64(b)), 'g', -1, 64)
	}
	return "?"
}

func (a *JavaValueArray) String() string { return heapObjectString(a) }

func (a *JavaValueArray) DescribeReferenceTo(JavaThing) string { return describeUnknownReference() }
func (a *JavaValueArray) RefersOnlyWeaklyTo(JavaThing) bool { return false }
func (a *JavaValueArray) Root() *Root { return a.snap.rootOf(a) }
func (a *JavaValueArray) IsNew() bool { return a.snap.IsNewObject(a) }
func (a *JavaValueArray) SiteTrace() *StackTrace { return a.snap.SiteTrace(a) }
