package hprof

import (
	"time"

	"github.com/heap-snapshot/internal/model"
)

// RecordTag represents the type of a top-level record in HPROF format.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagUnloadClass     RecordTag = 0x03
	TagStackFrame      RecordTag = 0x04
	TagStackTrace      RecordTag = 0x05
	TagAllocSites      RecordTag = 0x06
	TagHeapSummary     RecordTag = 0x07
	TagStartThread     RecordTag = 0x0A
	TagEndThread       RecordTag = 0x0B
	TagHeapDump        RecordTag = 0x0C
	TagCPUSamples      RecordTag = 0x0D
	TagControlSettings RecordTag = 0x0E
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
)

// HeapDumpTag represents sub-tags within a heap dump record.
type HeapDumpTag uint8

const (
	HeapTagRootUnknown        HeapDumpTag = 0xFF
	HeapTagRootJNIGlobal      HeapDumpTag = 0x01
	HeapTagRootJNILocal       HeapDumpTag = 0x02
	HeapTagRootJavaFrame      HeapDumpTag = 0x03
	HeapTagRootNativeStack    HeapDumpTag = 0x04
	HeapTagRootStickyClass    HeapDumpTag = 0x05
	HeapTagRootThreadBlock    HeapDumpTag = 0x06
	HeapTagRootMonitorUsed    HeapDumpTag = 0x07
	HeapTagRootThreadObject   HeapDumpTag = 0x08
	HeapTagClassDump          HeapDumpTag = 0x20
	HeapTagInstanceDump       HeapDumpTag = 0x21
	HeapTagObjectArrayDump    HeapDumpTag = 0x22
	HeapTagPrimitiveArrayDump HeapDumpTag = 0x23

	// Android extensions.
	HeapTagRootInternedString   HeapDumpTag = 0x89
	HeapTagRootFinalizing       HeapDumpTag = 0x8A
	HeapTagRootDebugger         HeapDumpTag = 0x8B
	HeapTagRootReferenceCleanup HeapDumpTag = 0x8C
	HeapTagRootVMInternal       HeapDumpTag = 0x8D
	HeapTagRootJNIMonitor       HeapDumpTag = 0x8E
	HeapTagRootUnreachable      HeapDumpTag = 0x90
	HeapTagPrimitiveArrayNoData HeapDumpTag = 0xC3
	HeapTagHeapDumpInfo         HeapDumpTag = 0xFE
)

// Version is the dump format revision taken from the header string.
type Version int

const (
	Version10 Version = iota + 1
	Version101
	Version102
	Version103
)

var versionsByFormat = map[string]Version{
	"JAVA PROFILE 1.0":   Version10,
	"JAVA PROFILE 1.0.1": Version101,
	"JAVA PROFILE 1.0.2": Version102,
	"JAVA PROFILE 1.0.3": Version103,
}

// NewStyleArrayClass reports whether array classes in this revision are
// named by their JVM descriptor.
func (v Version) NewStyleArrayClass() bool {
	return v >= Version101
}

// Header represents the HPROF file header.
type Header struct {
	Format    string    // e.g., "JAVA PROFILE 1.0.2"
	Version   Version   // parsed from Format
	IDSize    int       // Size of identifiers (4 or 8 bytes)
	Timestamp time.Time // Dump timestamp
}

// threadInfo ties a thread serial number to its thread object and the
// serial of its stack trace.
type threadInfo struct {
	objectID    uint64
	stackSerial uint32
}

// pendingRoot is a root whose referrer and trace depend on thread records
// that may appear later in the file.
type pendingRoot struct {
	objectID     uint64
	referrerID   uint64
	rootType     model.RootType
	threadSerial uint32
	hasThread    bool
	depth        int
}
