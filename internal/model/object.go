package model

import (
	"encoding/binary"
	"fmt"
	"math"
)

// JavaObject is an instance. Field values are decoded from the record each
// time they are asked for, unless the snapshot's value cache keeps them.
type JavaObject struct {
	lazyObject
	classID ID
	clazz   *JavaClass
}

func (o *JavaObject) Kind() Kind { return KindObject }
func (o *JavaObject) Clazz() *JavaClass { return o.clazz }

// ClassID returns the class id recorded in the dump.
func (o *JavaObject) ClassID() ID { return o.classID }

// Instance record: id, stack trace serial (4), class id, length (4), data.
func (o *JavaObject) lengthOffset() int64 { return o.offset + 2*int64(o.snap.idSize) + 4 }
func (o *JavaObject) dataOffset() int64 { return o.offset + 2*int64(o.snap.idSize) + 8 }

// ValueLength is the declared length of the field data.
func (o *JavaObject) ValueLength() int64 {
	return o.readLength(o.lengthOffset())
}

// Size is the field data length plus the object header.
func (o *JavaObject) Size() int64 {
	return o.ValueLength() + o.snap.minimumObjectSize
}

// Resolve finds the class, fabricating one from the declared length when
// the class id is unknown, decodes the fields once with diagnostics on and
// registers the object as an instance of its class.
func (o *JavaObject) Resolve() {
	if o.clazz != nil {
		return
	}
	s := o.snap
	if c, ok := s.FindThing(o.classID).(*JavaClass); ok {
		o.clazz = c
	} else {
		s.logger.Warn("Class %s not found, adding fake class!", o.classID.Hex())
		o.clazz = s.addFakeInstanceClass(o.classID, int(o.ValueLength()))
	}
	o.clazz.Resolve()
	o.parseFields(true)
	o.clazz.addInstance(o)
	s.resolveSiteTrace(o)
}

// Fields returns the instance field values, superclass fields first. A
// decode failure yields an empty slice.
func (o *JavaObject) Fields() []JavaThing {
	if o.clazz == nil {
		return nil
	}
	return o.parseFields(false)
}

// Field returns the value of the named field, or nil.
func (o *JavaObject) Field(name string) JavaThing {
	values := o.Fields()
	for i, f := range o.clazz.FieldsForInstance() {
		if f.name == name && i < len(values) {
			return values[i]
		}
	}
	return nil
}

func (o *JavaObject) parseFields(verbose bool) []JavaThing {
	s := o.snap
	data, err := s.readPayload(o.dataOffset(), o.ValueLength())
	if err != nil {
		s.logger.Error("Failed to read fields of object at offset %d: %v", o.offset, err)
		return []JavaThing{}
	}
	values, err := decodeFields(s, o.clazz, data, verbose)
	if err != nil {
		s.logger.Error("Failed to decode fields of object at offset %d: %v", o.offset, err)
		return []JavaThing{}
	}
	return values
}

// decodeFields walks the payload, which stores the leaf class's fields
// first, and writes each value at its superclass-first index.
func decodeFields(s *Snapshot, cl *JavaClass, data []byte, verbose bool) ([]JavaThing, error) {
	values := make([]JavaThing, cl.totalNumFields)
	fields := cl.fields
	target := cl.totalNumFields - len(fields)
	curr := cl
	fieldNo := 0
	pos := 0
	for i := 0; i < len(values); i, fieldNo = i+1, fieldNo+1 {
		for fieldNo >= len(fields) {
			curr = curr.superclass
			if curr == nil {
				return nil, fmt.Errorf("class %s declares more fields than its hierarchy", cl.name)
			}
			fields = curr.fields
			fieldNo = 0
			target -= len(fields)
		}
		f := fields[fieldNo]
		width := SignatureWidth(f.sig(), s.idSize)
		if width == 0 {
			return nil, fmt.Errorf("field %s has unknown signature %q", f.name, f.signature)
		}
		if pos+width > len(data) {
			return nil, fmt.Errorf("field %s at byte %d overruns %d bytes of data", f.name, pos, len(data))
		}
		values[target+fieldNo] = decodeValue(s, f, data[pos:pos+width], verbose)
		pos += width
	}
	return values, nil
}

func decodeValue(s *Snapshot, f *JavaField, b []byte, verbose bool) JavaThing {
	switch f.sig() {
	case 'L', '[':
		return NewObjectRef(decodeID(b)).Dereference(s, f, verbose)
	case 'Z':
		return JavaBoolean{Value: b[0] != 0}
	case 'B':
		return JavaByte{Value: int8(b[0])}
	case 'S':
		return JavaShort{Value: int16(binary.BigEndian.Uint16(b))}
	case 'C':
		return JavaChar{Value: binary.BigEndian.Uint16(b)}
	case 'I':
		return JavaInt{Value: int32(binary.BigEndian.Uint32(b))}
	case 'F':
		return JavaFloat{Value: math.Float32frombits(binary.BigEndian.Uint32(b))}
	case 'J':
		return JavaLong{Value: int64(binary.BigEndian.Uint64(b))}
	case 'D':
		return JavaDouble{Value: math.Float64frombits(binary.BigEndian.Uint64(b))}
	}
	return nil
}

func decodeID(b []byte) ID {
	if len(b) == 4 {
		return ID(binary.BigEndian.Uint32(b))
	}
	return ID(binary.BigEndian.Uint64(b))
}

// String renders strings by their contents and anything else as
// class@id.
func (o *JavaObject) String() string {
	if o.clazz != nil && o.clazz.IsString() {
		return o.stringValue()
	}
	return heapObjectString(o)
}

func (o *JavaObject) stringValue() string {
	arr, ok := o.Field("value").(*JavaValueArray)
	if !ok {
		return "null"
	}
	if arr.ElementSignature() == 'B' {
		return decodeCompactString(arr, o.Field("coder"))
	}
	return arr.ValueString(true)
}

// decodeCompactString renders the byte[] backing of a compact string:
// coder 0 is Latin-1, coder 1 is UTF-16 in big-endian dump order.
func decodeCompactString(arr *JavaValueArray, coder JavaThing) string {
	data := arr.payload()
	if c, ok := coder.(JavaByte); ok && c.Value == 1 {
		return decodeUTF16(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// DescribeReferenceTo names the field holding target.
func (o *JavaObject) DescribeReferenceTo(target JavaThing) string {
	for i, v := range o.Fields() {
		if v == target {
			return "field " + o.clazz.FieldForInstance(i).name
		}
	}
	return describeUnknownReference()
}

// RefersOnlyWeaklyTo reports whether o is a java.lang.ref.Reference whose
// only pointer to other is the referent field.
func (o *JavaObject) RefersOnlyWeaklyTo(other JavaThing) bool {
	s := o.snap
	if s.weakReferenceClass == nil || o.clazz == nil || !s.weakReferenceClass.IsAssignableFrom(o.clazz) {
		return false
	}
	for i, v := range o.Fields() {
		if i != s.referentFieldIndex && v == other {
			return false
		}
	}
	return true
}

func (o *JavaObject) Root() *Root { return o.snap.rootOf(o) }
func (o *JavaObject) IsNew() bool { return o.snap.IsNewObject(o) }
func (o *JavaObject) SiteTrace() *StackTrace { return o.snap.SiteTrace(o) }
