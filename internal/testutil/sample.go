package testutil

// Ids used by SampleDump.
const (
	SampleObjectClass      uint64 = 0x100
	SampleClassClass       uint64 = 0x101
	SampleStringClass      uint64 = 0x102
	SampleClassLoaderClass uint64 = 0x103
	SampleThreadClass      uint64 = 0x104
	SampleNodeClass        uint64 = 0x200
	SampleCacheClass       uint64 = 0x201
	SampleCharArrayClass   uint64 = 0x300
	SampleNodeArrayClass   uint64 = 0x301

	SampleThread     uint64 = 0x900
	SampleHead       uint64 = 0x1000
	SampleTail       uint64 = 0x1001
	SampleGarbage    uint64 = 0x1002
	SampleName       uint64 = 0x1100
	SampleNameChars  uint64 = 0x2000
	SampleNodeArray  uint64 = 0x3000
	SampleCache      uint64 = 0x4000
	SampleTraceFrame uint64 = 0xF1
	SampleMainFrame  uint64 = 0xF2

	SampleThreadSerial uint32 = 1
	SampleTraceSerial  uint32 = 1
)

// SampleDump builds a small, complete dump:
//
//	class com.example.Cache (sticky) --INSTANCE--> Cache@0x4000
//	Cache.entries --> Node[]@0x3000 --> Node@0x1000, Node@0x1001
//	Node@0x1000.next --> Node@0x1001, Node@0x1000.name --> "head"
//	Node@0x1002.next --> Node@0x1000 (garbage)
//
// The head node is also a Java frame root of the main thread and was
// allocated under trace 1. With segmented set, classes and objects go into
// two HEAP_DUMP_SEGMENT records followed by HEAP_DUMP_END.
func SampleDump(idSize int, segmented bool) []byte {
	b := NewHprofBuilder(idSize)

	classes := []struct {
		id   uint64
		name string
	}{
		{SampleObjectClass, "java/lang/Object"},
		{SampleClassClass, "java/lang/Class"},
		{SampleStringClass, "java/lang/String"},
		{SampleClassLoaderClass, "java/lang/ClassLoader"},
		{SampleThreadClass, "java/lang/Thread"},
		{SampleNodeClass, "com/example/Node"},
		{SampleCacheClass, "com/example/Cache"},
		{SampleCharArrayClass, "[C"},
		{SampleNodeArrayClass, "[Lcom/example/Node;"},
	}
	for i, c := range classes {
		b.LoadClass(uint32(i+1), c.id, 0, c.name)
	}

	b.StackFrame(FrameDef{ID: SampleTraceFrame, Method: "add", Signature: "(I)V", SourceFile: "Node.java", ClassSerial: 6, Line: 42})
	b.StackFrame(FrameDef{ID: SampleMainFrame, Method: "main", Signature: "([Ljava/lang/String;)V", SourceFile: "Main.java", ClassSerial: 99, Line: -3})
	b.StackTrace(SampleTraceSerial, SampleThreadSerial, SampleTraceFrame, SampleMainFrame)
	b.StartThread(SampleThreadSerial, SampleThread, SampleTraceSerial, "main")

	writeClasses := func(h *HeapSegment) {
		h.ClassDump(ClassDef{ID: SampleObjectClass})
		h.ClassDump(ClassDef{ID: SampleClassClass, SuperID: SampleObjectClass})
		h.ClassDump(ClassDef{
			ID:           SampleStringClass,
			SuperID:      SampleObjectClass,
			InstanceSize: uint32(idSize + 4),
			Fields:       []FieldDef{{Name: "value", Type: TypeObject}, {Name: "hash", Type: TypeInt}},
		})
		h.ClassDump(ClassDef{ID: SampleClassLoaderClass, SuperID: SampleObjectClass})
		h.ClassDump(ClassDef{ID: SampleThreadClass, SuperID: SampleObjectClass})
		h.ClassDump(ClassDef{
			ID:           SampleNodeClass,
			SuperID:      SampleObjectClass,
			InstanceSize: uint32(2*idSize + 4),
			Fields: []FieldDef{
				{Name: "next", Type: TypeObject},
				{Name: "value", Type: TypeInt},
				{Name: "name", Type: TypeObject},
			},
		})
		h.ClassDump(ClassDef{
			ID:           SampleCacheClass,
			SuperID:      SampleObjectClass,
			InstanceSize: uint32(idSize),
			Statics: []StaticDef{
				{Name: "INSTANCE", Type: TypeObject, Value: NewValues(idSize).ID(SampleCache).Bytes()},
				{Name: "LIMIT", Type: TypeInt, Value: NewValues(idSize).Int(64).Bytes()},
			},
			Fields: []FieldDef{{Name: "entries", Type: TypeObject}},
		})
		h.ClassDump(ClassDef{ID: SampleCharArrayClass, SuperID: SampleObjectClass})
		h.ClassDump(ClassDef{ID: SampleNodeArrayClass, SuperID: SampleObjectClass})
	}

	node := func(next uint64, value int32, name uint64) []byte {
		return NewValues(idSize).ID(next).Int(value).ID(name).Bytes()
	}
	writeObjects := func(h *HeapSegment) {
		h.RootStickyClass(SampleCacheClass)
		h.RootThreadObject(SampleThread, SampleThreadSerial, SampleTraceSerial)
		h.RootJavaFrame(SampleHead, SampleThreadSerial, 0)
		h.RootJNIGlobal(SampleName, 0x77)
		h.RootAndroid(0x8A, SampleTail)

		h.InstanceDump(SampleThread, 0, SampleThreadClass, nil)
		h.InstanceDump(SampleHead, SampleTraceSerial, SampleNodeClass, node(SampleTail, 1, SampleName))
		h.InstanceDump(SampleTail, 0, SampleNodeClass, node(0, 2, 0))
		h.InstanceDump(SampleGarbage, 0, SampleNodeClass, node(SampleHead, 3, 0))
		h.InstanceDump(SampleName, 0, SampleStringClass, NewValues(idSize).ID(SampleNameChars).Int(0).Bytes())
		h.PrimitiveArrayDump(SampleNameChars, 0, TypeChar, 4, NewValues(idSize).Chars("head").Bytes())
		h.ObjectArrayDump(SampleNodeArray, 0, SampleNodeArrayClass, []uint64{SampleHead, SampleTail})
		h.InstanceDump(SampleCache, 0, SampleCacheClass, NewValues(idSize).ID(SampleNodeArray).Bytes())
	}

	if segmented {
		b.HeapDumpSegment(writeClasses)
		b.HeapDumpSegment(writeObjects)
		b.HeapDumpEnd()
	} else {
		b.HeapDump(func(h *HeapSegment) {
			writeClasses(h)
			writeObjects(h)
		})
	}
	return b.Bytes()
}
