package testutil

// Record tags.
const (
	TagUTF8            byte = 0x01
	TagLoadClass       byte = 0x02
	TagStackFrame      byte = 0x04
	TagStackTrace      byte = 0x05
	TagStartThread     byte = 0x0A
	TagHeapDump        byte = 0x0C
	TagHeapDumpSegment byte = 0x1C
	TagHeapDumpEnd     byte = 0x2C
)

// HprofBuilder writes a complete .hprof file.
type HprofBuilder struct {
	w      *Writer
	names  map[string]uint64
	nextID uint64
}

// NewHprofBuilder starts a "JAVA PROFILE 1.0.2" dump.
func NewHprofBuilder(idSize int) *HprofBuilder {
	return NewHprofBuilderVersion("JAVA PROFILE 1.0.2", idSize)
}

// NewHprofBuilderVersion starts a dump with the given format string.
func NewHprofBuilderVersion(format string, idSize int) *HprofBuilder {
	b := &HprofBuilder{
		w:      NewWriter(idSize),
		names:  make(map[string]uint64),
		nextID: 0x7000_0000,
	}
	b.w.Raw([]byte(format)).U1(0).U4(uint32(idSize)).U8(1_700_000_000_000)
	return b
}

// Bytes returns the file contents.
func (b *HprofBuilder) Bytes() []byte { return b.w.Bytes() }

func (b *HprofBuilder) record(tag byte, body []byte) *HprofBuilder {
	b.w.U1(tag).U4(0).U4(uint32(len(body))).Raw(body)
	return b
}

// Record writes an arbitrary record.
func (b *HprofBuilder) Record(tag byte, body []byte) *HprofBuilder {
	return b.record(tag, body)
}

// UTF8 writes a string record.
func (b *HprofBuilder) UTF8(id uint64, s string) *HprofBuilder {
	body := NewWriter(b.w.idSize).ID(id).Raw([]byte(s))
	return b.record(TagUTF8, body.Bytes())
}

// Name returns the string id for s, writing its UTF8 record on first use.
func (b *HprofBuilder) Name(s string) uint64 {
	if id, ok := b.names[s]; ok {
		return id
	}
	b.nextID++
	id := b.nextID
	b.names[s] = id
	b.UTF8(id, s)
	return id
}

// LoadClass writes a LOAD_CLASS record. name uses '/' separators as the
// JVM writes them.
func (b *HprofBuilder) LoadClass(classSerial uint32, classID uint64, stackSerial uint32, name string) *HprofBuilder {
	nameID := b.Name(name)
	body := NewWriter(b.w.idSize).U4(classSerial).ID(classID).U4(stackSerial).ID(nameID)
	return b.record(TagLoadClass, body.Bytes())
}

// FrameDef describes a STACK_FRAME record.
type FrameDef struct {
	ID          uint64
	Method      string
	Signature   string
	SourceFile  string
	ClassSerial uint32
	Line        int32
}

// StackFrame writes a STACK_FRAME record.
func (b *HprofBuilder) StackFrame(f FrameDef) *HprofBuilder {
	method, sig, src := b.Name(f.Method), b.Name(f.Signature), b.Name(f.SourceFile)
	body := NewWriter(b.w.idSize).ID(f.ID).ID(method).ID(sig).ID(src).U4(f.ClassSerial).U4(uint32(f.Line))
	return b.record(TagStackFrame, body.Bytes())
}

// StackTrace writes a STACK_TRACE record.
func (b *HprofBuilder) StackTrace(serial, threadSerial uint32, frameIDs ...uint64) *HprofBuilder {
	body := NewWriter(b.w.idSize).U4(serial).U4(threadSerial).U4(uint32(len(frameIDs)))
	for _, id := range frameIDs {
		body.ID(id)
	}
	return b.record(TagStackTrace, body.Bytes())
}

// StartThread writes a START_THREAD record.
func (b *HprofBuilder) StartThread(threadSerial uint32, threadID uint64, stackSerial uint32, name string) *HprofBuilder {
	nameID := b.Name(name)
	body := NewWriter(b.w.idSize).U4(threadSerial).ID(threadID).U4(stackSerial).ID(nameID).ID(0).ID(0)
	return b.record(TagStartThread, body.Bytes())
}

// HeapDump writes a HEAP_DUMP record whose body fill produces.
func (b *HprofBuilder) HeapDump(fill func(h *HeapSegment)) *HprofBuilder {
	return b.heap(TagHeapDump, fill)
}

// HeapDumpSegment writes a HEAP_DUMP_SEGMENT record.
func (b *HprofBuilder) HeapDumpSegment(fill func(h *HeapSegment)) *HprofBuilder {
	return b.heap(TagHeapDumpSegment, fill)
}

// HeapDumpEnd writes the end marker for segmented dumps.
func (b *HprofBuilder) HeapDumpEnd() *HprofBuilder {
	return b.record(TagHeapDumpEnd, nil)
}

func (b *HprofBuilder) heap(tag byte, fill func(h *HeapSegment)) *HprofBuilder {
	h := &HeapSegment{Writer: NewWriter(b.w.idSize), b: b}
	fill(h)
	return b.record(tag, h.Bytes())
}

// HeapSegment is the body of a heap dump record.
type HeapSegment struct {
	*Writer
	b *HprofBuilder
}

// FieldDef is an instance field of a class dump.
type FieldDef struct {
	Name string
	Type byte
}

// StaticDef is a static field with its encoded value.
type StaticDef struct {
	Name  string
	Type  byte
	Value []byte
}

// ClassDef is the content of a CLASS_DUMP sub-record.
type ClassDef struct {
	ID                 uint64
	StackSerial        uint32
	SuperID            uint64
	LoaderID           uint64
	SignersID          uint64
	ProtectionDomainID uint64
	InstanceSize       uint32
	Statics            []StaticDef
	Fields             []FieldDef
}

// ClassDump writes a CLASS_DUMP sub-record with an empty constant pool.
func (h *HeapSegment) ClassDump(c ClassDef) {
	statics := make([]uint64, len(c.Statics))
	for i, s := range c.Statics {
		statics[i] = h.b.Name(s.Name)
	}
	fields := make([]uint64, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = h.b.Name(f.Name)
	}

	h.U1(0x20)
	h.ID(c.ID).U4(c.StackSerial).ID(c.SuperID).ID(c.LoaderID).ID(c.SignersID).ID(c.ProtectionDomainID)
	h.ID(0).ID(0).U4(c.InstanceSize)
	h.U2(0)
	h.U2(uint16(len(c.Statics)))
	for i, s := range c.Statics {
		h.ID(statics[i]).U1(s.Type).Raw(s.Value)
	}
	h.U2(uint16(len(c.Fields)))
	for i, f := range c.Fields {
		h.ID(fields[i]).U1(f.Type)
	}
}

func (h *HeapSegment) RootUnknown(id uint64) { h.U1(0xFF).ID(id) }
func (h *HeapSegment) RootStickyClass(id uint64) { h.U1(0x05).ID(id) }
func (h *HeapSegment) RootMonitorUsed(id uint64) { h.U1(0x07).ID(id) }

func (h *HeapSegment) RootJNIGlobal(id, ref uint64) { h.U1(0x01).ID(id).ID(ref) }

func (h *HeapSegment) RootJNILocal(id uint64, threadSerial, frame uint32) {
	h.U1(0x02).ID(id).U4(threadSerial).U4(frame)
}

func (h *HeapSegment) RootJavaFrame(id uint64, threadSerial, frame uint32) {
	h.U1(0x03).ID(id).U4(threadSerial).U4(frame)
}

func (h *HeapSegment) RootNativeStack(id uint64, threadSerial uint32) {
	h.U1(0x04).ID(id).U4(threadSerial)
}

func (h *HeapSegment) RootThreadBlock(id uint64, threadSerial uint32) {
	h.U1(0x06).ID(id).U4(threadSerial)
}

func (h *HeapSegment) RootThreadObject(id uint64, threadSerial, stackSerial uint32) {
	h.U1(0x08).ID(id).U4(threadSerial).U4(stackSerial)
}

// RootAndroid writes one of the single-id Android root kinds (0x89-0x8D,
// 0x90).
func (h *HeapSegment) RootAndroid(tag byte, id uint64) { h.U1(tag).ID(id) }

// HeapDumpInfo writes the Android heap selector sub-record.
func (h *HeapSegment) HeapDumpInfo(heapType uint32, nameID uint64) {
	h.U1(0xFE).U4(heapType).ID(nameID)
}

// PrimitiveArrayNoData writes the Android array header without contents.
func (h *HeapSegment) PrimitiveArrayNoData(id uint64, serial, count uint32, elemType byte) {
	h.U1(0xC3).ID(id).U4(serial).U4(count).U1(elemType)
}
