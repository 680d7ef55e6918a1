package hprof

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/heap-snapshot/internal/buffer"
	"github.com/heap-snapshot/internal/model"
	"github.com/heap-snapshot/pkg/utils"
)

// cancelCheckInterval is how many heap sub-records are read between context
// checks.
const cancelCheckInterval = 4096

// Options configures the loader.
type Options struct {
	// CallStack reads stack frames and traces and binds allocation sites and
	// root traces. Off, both record kinds are skipped.
	CallStack bool
	// CalculateRefs builds referrer lists and the object-to-root map during
	// resolution.
	CalculateRefs bool
	// UnresolvedOK silences warnings about ids that name nothing.
	UnresolvedOK bool
	// Cache is the payload cache handed to the snapshot. Nil means no cache.
	Cache model.ValueCache
	// Logger receives diagnostics. If nil, they are discarded.
	Logger utils.Logger
}

// DefaultOptions returns default loader options.
func DefaultOptions() *Options {
	return &Options{
		CallStack:     true,
		CalculateRefs: true,
	}
}

// Stats counts what the loader read.
type Stats struct {
	Strings         int
	LoadedClasses   int
	ClassDumps      int64
	InstanceDumps   int64
	ObjectArrays    int64
	PrimitiveArrays int64
	Roots           int
	StackFrames     int
	StackTraces     int
	Threads         int
	UnknownTags     int64
	SkippedBytes    int64
}

// Dump is a loaded and resolved heap dump.
type Dump struct {
	Header   *Header
	Snapshot *model.Snapshot
	Stats    Stats
}

// Close releases the snapshot and its buffer.
func (d *Dump) Close() error {
	return d.Snapshot.Close()
}

// Loader turns an HPROF file into a resolved snapshot.
type Loader struct {
	opts   *Options
	logger utils.Logger
}

// NewLoader creates a new loader.
func NewLoader(opts *Options) *Loader {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Loader{opts: opts, logger: logger}
}

// siteBinding is an object waiting for its allocation trace.
type siteBinding struct {
	obj    model.JavaHeapObject
	serial uint32
}

// loadState holds the per-file state of one load.
type loadState struct {
	reader *Reader
	header *Header
	snap   *model.Snapshot

	strings            map[uint64]string
	classNames         map[uint64]string // class object id -> name
	classNamesBySerial map[uint32]string
	frames             map[uint64]*model.StackFrame
	traces             map[uint32]*model.StackTrace
	threads            map[uint32]threadInfo
	roots              []pendingRoot
	sites              []siteBinding

	stats     Stats
	subRecord int64
}

func newLoadState(r *Reader) *loadState {
	return &loadState{
		reader:             r,
		strings:            make(map[uint64]string),
		classNames:         make(map[uint64]string),
		classNamesBySerial: make(map[uint32]string),
		frames:             make(map[uint64]*model.StackFrame),
		traces:             make(map[uint32]*model.StackTrace),
		threads:            make(map[uint32]threadInfo),
	}
}

// Load opens path with the given buffer kind and loads it. The returned
// dump owns the buffer.
func (l *Loader) Load(ctx context.Context, path string, kind buffer.Kind) (*Dump, error) {
	buf, err := buffer.Open(path, kind)
	if err != nil {
		return nil, err
	}
	dump, err := l.LoadBuffer(ctx, buf)
	if err != nil {
		_ = buf.Close()
		return nil, err
	}
	return dump, nil
}

// LoadBuffer reads every record of buf into a new snapshot and resolves it.
func (l *Loader) LoadBuffer(ctx context.Context, buf buffer.ReadBuffer) (*Dump, error) {
	timer := utils.NewTimer("HPROF Load", utils.WithLogger(l.logger))

	reader := NewReader(buf)
	state := newLoadState(reader)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	state.header = header
	l.logger.Debug("HPROF header: format=%q idSize=%d timestamp=%s", header.Format, header.IDSize, header.Timestamp)

	snap := model.NewSnapshot(buf, model.WithLogger(l.logger), model.WithValueCache(l.opts.Cache))
	if err := snap.SetIdentifierSize(header.IDSize); err != nil {
		return nil, err
	}
	snap.SetNewStyleArrayClass(header.Version.NewStyleArrayClass())
	snap.SetUnresolvedObjectsOK(l.opts.UnresolvedOK)
	state.snap = snap

	pt := timer.Start("Parse HPROF records")
	if err := l.parseRecords(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	pt.Stop()

	timer.TimeFunc("Add roots", func() {
		l.addRoots(state)
		l.bindSiteTraces(state)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer.TimeFunc("Resolve", func() {
		snap.Resolve(l.opts.CalculateRefs)
	})

	timer.PrintSummary()
	l.logger.Info("Loaded %d classes, %d instances, %d arrays, %d roots",
		state.stats.ClassDumps, state.stats.InstanceDumps,
		state.stats.ObjectArrays+state.stats.PrimitiveArrays, state.stats.Roots)

	return &Dump{Header: header, Snapshot: snap, Stats: state.stats}, nil
}

// parseRecords parses all top-level records.
func (l *Loader) parseRecords(ctx context.Context, state *loadState) error {
	r := state.reader
	for !r.EOF() {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := r.Pos()
		tag, _, length, err := r.ReadRecordHeader()
		if err != nil {
			return err
		}
		if int64(length) > r.Remaining() {
			return fmt.Errorf("%w: record 0x%02X at offset %d declares %d bytes, %d remain",
				ErrTruncated, uint8(tag), start, length, r.Remaining())
		}
		end := r.Pos() + int64(length)

		switch tag {
		case TagString:
			err = l.parseStringRecord(state, length)
		case TagLoadClass:
			err = l.parseLoadClassRecord(state)
		case TagStackFrame:
			if l.opts.CallStack {
				err = l.parseStackFrameRecord(state)
			}
		case TagStackTrace:
			if l.opts.CallStack {
				err = l.parseStackTraceRecord(state)
			}
		case TagStartThread:
			err = l.parseStartThreadRecord(state)
		case TagHeapDump, TagHeapDumpSegment:
			err = l.parseHeapDumpRecord(ctx, state, end)
		}
		if err != nil {
			return err
		}

		// Skip unread bytes of the record, including whole records of
		// kinds we do not model.
		if r.Pos() > end {
			return fmt.Errorf("%w: record 0x%02X at offset %d", ErrSegmentOverrun, uint8(tag), start)
		}
		if err := r.Skip(end - r.Pos()); err != nil {
			return err
		}
	}
	return nil
}

// parseStringRecord parses a STRING record.
func (l *Loader) parseStringRecord(state *loadState, length uint32) error {
	r := state.reader
	id, err := r.ReadID()
	if err != nil {
		return err
	}

	strLen := int(length) - r.IDSize()
	if strLen < 0 {
		return corruptf("invalid string length: %d", strLen)
	}

	strBytes, err := r.ReadBytes(strLen)
	if err != nil {
		return err
	}

	state.strings[id] = string(strBytes)
	state.stats.Strings++
	return nil
}

// parseLoadClassRecord parses a LOAD_CLASS record.
func (l *Loader) parseLoadClassRecord(state *loadState) error {
	r := state.reader
	serial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	// Stack trace serial number
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	nameID, err := r.ReadID()
	if err != nil {
		return err
	}

	name := normalizeClassName(state.nameFromID(l.logger, nameID))
	state.classNames[classID] = name
	state.classNamesBySerial[serial] = name
	state.stats.LoadedClasses++
	return nil
}

// parseStackFrameRecord parses a STACK_FRAME record.
func (l *Loader) parseStackFrameRecord(state *loadState) error {
	r := state.reader
	var ids [4]uint64
	for i := range ids {
		v, err := r.ReadID()
		if err != nil {
			return err
		}
		ids[i] = v
	}
	classSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	line, err := r.ReadUint32()
	if err != nil {
		return err
	}

	className, ok := state.classNamesBySerial[classSerial]
	if !ok {
		className = "<unknown class>"
	}
	state.frames[ids[0]] = &model.StackFrame{
		MethodName:      state.nameFromID(l.logger, ids[1]),
		MethodSignature: state.nameFromID(l.logger, ids[2]),
		ClassName:       className,
		SourceFileName:  state.nameFromID(l.logger, ids[3]),
		Line:            int(int32(line)),
	}
	state.stats.StackFrames++
	return nil
}

// parseStackTraceRecord parses a STACK_TRACE record.
func (l *Loader) parseStackTraceRecord(state *loadState) error {
	r := state.reader
	serial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	// Thread serial number
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if int64(count)*int64(r.IDSize()) > r.Remaining() {
		return corruptf("stack trace %d declares %d frames past end of file", serial, count)
	}

	frames := make([]*model.StackFrame, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadID()
		if err != nil {
			return err
		}
		f, ok := state.frames[id]
		if !ok {
			l.logger.Warn("Stack frame 0x%x not found for trace %d", id, serial)
			f = &model.StackFrame{
				MethodName: "<unknown method>",
				ClassName:  "<unknown class>",
				Line:       model.LineNumberUnknown,
			}
		}
		frames = append(frames, f)
	}
	state.traces[serial] = model.NewStackTrace(frames)
	state.stats.StackTraces++
	return nil
}

// parseStartThreadRecord parses a START_THREAD record.
func (l *Loader) parseStartThreadRecord(state *loadState) error {
	r := state.reader
	threadSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	objectID, err := r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	state.threads[threadSerial] = threadInfo{objectID: objectID, stackSerial: stackSerial}
	state.stats.Threads++
	return nil
}

// parseHeapDumpRecord parses a HEAP_DUMP or HEAP_DUMP_SEGMENT record
// ending at end.
func (l *Loader) parseHeapDumpRecord(ctx context.Context, state *loadState, end int64) error {
	r := state.reader
	for r.Pos() < end {
		state.subRecord++
		if state.subRecord%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		start := r.Pos()
		tagByte, err := r.ReadByte()
		if err != nil {
			return err
		}

		known, err := l.parseHeapDumpSubRecord(state, HeapDumpTag(tagByte), end)
		if err != nil {
			return err
		}
		if !known {
			// The length of an unknown sub-record cannot be determined, so
			// the rest of the segment is lost.
			state.stats.UnknownTags++
			state.stats.SkippedBytes += end - r.Pos()
			l.logger.Warn("Unknown heap dump sub-record 0x%02X at offset %d, skipping %d bytes",
				tagByte, start, end-r.Pos())
			return r.Skip(end - r.Pos())
		}
		if r.Pos() > end {
			return fmt.Errorf("%w: sub-record 0x%02X at offset %d", ErrSegmentOverrun, tagByte, start)
		}
	}
	return nil
}

// parseHeapDumpSubRecord parses one sub-record. It reports false for tags
// it does not know.
func (l *Loader) parseHeapDumpSubRecord(state *loadState, tag HeapDumpTag, end int64) (bool, error) {
	r := state.reader

	switch tag {
	case HeapTagRootUnknown,
		HeapTagRootInternedString, HeapTagRootFinalizing, HeapTagRootDebugger,
		HeapTagRootReferenceCleanup, HeapTagRootVMInternal, HeapTagRootUnreachable:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		state.addRoot(pendingRoot{objectID: id, rootType: model.RootUnknown})

	case HeapTagRootJNIMonitor:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		// Thread serial and stack depth.
		if err := r.Skip(8); err != nil {
			return true, err
		}
		state.addRoot(pendingRoot{objectID: id, rootType: model.RootUnknown})

	case HeapTagRootThreadObject:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		threadSerial, err := r.ReadUint32()
		if err != nil {
			return true, err
		}
		stackSerial, err := r.ReadUint32()
		if err != nil {
			return true, err
		}
		state.threads[threadSerial] = threadInfo{objectID: id, stackSerial: stackSerial}

	case HeapTagRootJNIGlobal:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		// JNI global ref ID
		if _, err := r.ReadID(); err != nil {
			return true, err
		}
		state.addRoot(pendingRoot{objectID: id, rootType: model.RootNativeStatic})

	case HeapTagRootJNILocal, HeapTagRootJavaFrame:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		threadSerial, err := r.ReadUint32()
		if err != nil {
			return true, err
		}
		depth, err := r.ReadUint32()
		if err != nil {
			return true, err
		}
		rootType := model.RootJavaLocal
		if tag == HeapTagRootJNILocal {
			rootType = model.RootNativeLocal
		}
		state.addRoot(pendingRoot{
			objectID:     id,
			rootType:     rootType,
			threadSerial: threadSerial,
			hasThread:    true,
			depth:        int(depth) + 1,
		})

	case HeapTagRootNativeStack, HeapTagRootThreadBlock:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		threadSerial, err := r.ReadUint32()
		if err != nil {
			return true, err
		}
		rootType := model.RootNativeStack
		if tag == HeapTagRootThreadBlock {
			rootType = model.RootThreadBlock
		}
		state.addRoot(pendingRoot{
			objectID:     id,
			rootType:     rootType,
			threadSerial: threadSerial,
			hasThread:    true,
			depth:        -1,
		})

	case HeapTagRootStickyClass:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		state.addRoot(pendingRoot{objectID: id, rootType: model.RootSystemClass})

	case HeapTagRootMonitorUsed:
		id, err := r.ReadID()
		if err != nil {
			return true, err
		}
		state.addRoot(pendingRoot{objectID: id, rootType: model.RootBusyMonitor})

	case HeapTagClassDump:
		return true, l.parseClassDump(state)

	case HeapTagInstanceDump:
		return true, l.parseInstanceDump(state, end)

	case HeapTagObjectArrayDump:
		return true, l.parseObjectArrayDump(state, end)

	case HeapTagPrimitiveArrayDump:
		return true, l.parsePrimitiveArrayDump(state, end)

	case HeapTagPrimitiveArrayNoData:
		// id, stack serial, count and element type, with no contents.
		return true, r.Skip(int64(r.IDSize()) + 9)

	case HeapTagHeapDumpInfo:
		// heap type (4 bytes) + heap name string ID
		return true, r.Skip(4 + int64(r.IDSize()))

	default:
		return false, nil
	}
	return true, nil
}

// parseClassDump parses a CLASS_DUMP sub-record.
func (l *Loader) parseClassDump(state *loadState) error {
	r := state.reader
	idSize := r.IDSize()

	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	// super, loader, signers, protection domain, two reserved ids
	var refs [6]uint64
	for i := range refs {
		if refs[i], err = r.ReadID(); err != nil {
			return err
		}
	}
	instanceSize, err := r.ReadUint32()
	if err != nil {
		return err
	}

	// Constant pool entries are not modelled.
	poolCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(poolCount); i++ {
		if _, err := r.ReadUint16(); err != nil {
			return err
		}
		t, err := r.ReadByte()
		if err != nil {
			return err
		}
		width, err := valueWidth(t, idSize)
		if err != nil {
			return err
		}
		if err := r.Skip(int64(width)); err != nil {
			return err
		}
	}

	staticCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	statics := make([]*model.JavaStatic, 0, staticCount)
	for i := 0; i < int(staticCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := r.ReadByte()
		if err != nil {
			return err
		}
		value, err := l.readValue(state, t)
		if err != nil {
			return err
		}
		field := model.NewJavaField(state.nameFromID(l.logger, nameID), string(model.BasicType(t).Signature()))
		statics = append(statics, model.NewJavaStatic(field, value))
	}

	fieldCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	fields := make([]*model.JavaField, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := r.ReadByte()
		if err != nil {
			return err
		}
		sig := model.BasicType(t).Signature()
		if sig == 0 {
			return corruptf("class 0x%x field %d has unknown type %d", classID, i, t)
		}
		fields = append(fields, model.NewJavaField(state.nameFromID(l.logger, nameID), string(sig)))
	}

	name, ok := state.classNames[classID]
	if !ok {
		l.logger.Warn("Class name not found for 0x%x", classID)
		name = fmt.Sprintf("unknown-name@0x%x", classID)
	}

	c := model.NewJavaClass(model.ClassInfo{
		ID:                 model.ID(classID),
		Name:               name,
		SuperID:            model.ID(refs[0]),
		LoaderID:           model.ID(refs[1]),
		SignersID:          model.ID(refs[2]),
		ProtectionDomainID: model.ID(refs[3]),
		Fields:             fields,
		Statics:            statics,
		InstanceSize:       int(instanceSize),
	})
	state.snap.AddClass(c)
	state.bindSite(c, stackSerial)
	state.stats.ClassDumps++
	return nil
}

// parseInstanceDump parses an INSTANCE_DUMP sub-record. The model keeps
// only the offset of the object id.
func (l *Loader) parseInstanceDump(state *loadState, end int64) error {
	r := state.reader
	start := r.Pos()

	id, err := r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	length, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := skipWithin(r, int64(length), end, "instance", id); err != nil {
		return err
	}

	obj := state.snap.AddInstance(model.ID(id), model.ID(classID), start)
	state.bindSite(obj, stackSerial)
	state.stats.InstanceDumps++
	return nil
}

// parseObjectArrayDump parses an OBJECT_ARRAY_DUMP sub-record.
func (l *Loader) parseObjectArrayDump(state *loadState, end int64) error {
	r := state.reader
	start := r.Pos()

	id, err := r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	if err := skipWithin(r, int64(count)*int64(r.IDSize()), end, "object array", id); err != nil {
		return err
	}

	arr := state.snap.AddObjectArray(model.ID(id), model.ID(classID), start)
	state.bindSite(arr, stackSerial)
	state.stats.ObjectArrays++
	return nil
}

// parsePrimitiveArrayDump parses a PRIMITIVE_ARRAY_DUMP sub-record.
func (l *Loader) parsePrimitiveArrayDump(state *loadState, end int64) error {
	r := state.reader
	start := r.Pos()

	id, err := r.ReadID()
	if err != nil {
		return err
	}
	stackSerial, err := r.ReadUint32()
	if err != nil {
		return err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	t, err := r.ReadByte()
	if err != nil {
		return err
	}
	if t == byte(model.TypeObject) {
		return corruptf("primitive array 0x%x has object element type", id)
	}
	width, err := valueWidth(t, r.IDSize())
	if err != nil {
		return err
	}
	if err := skipWithin(r, int64(count)*int64(width), end, "primitive array", id); err != nil {
		return err
	}

	arr := state.snap.AddValueArray(model.ID(id), start)
	state.bindSite(arr, stackSerial)
	state.stats.PrimitiveArrays++
	return nil
}

// readValue reads a static field value of basic type t.
func (l *Loader) readValue(state *loadState, t byte) (model.JavaThing, error) {
	r := state.reader
	switch model.BasicType(t) {
	case model.TypeObject:
		id, err := r.ReadID()
		return model.NewObjectRef(model.ID(id)), err
	case model.TypeBoolean:
		b, err := r.ReadByte()
		return model.JavaBoolean{Value: b != 0}, err
	case model.TypeByte:
		b, err := r.ReadByte()
		return model.JavaByte{Value: int8(b)}, err
	case model.TypeChar:
		v, err := r.ReadUint16()
		return model.JavaChar{Value: v}, err
	case model.TypeShort:
		v, err := r.ReadUint16()
		return model.JavaShort{Value: int16(v)}, err
	case model.TypeInt:
		v, err := r.ReadUint32()
		return model.JavaInt{Value: int32(v)}, err
	case model.TypeFloat:
		v, err := r.ReadUint32()
		return model.JavaFloat{Value: math.Float32frombits(v)}, err
	case model.TypeLong:
		v, err := r.ReadUint64()
		return model.JavaLong{Value: int64(v)}, err
	case model.TypeDouble:
		v, err := r.ReadUint64()
		return model.JavaDouble{Value: math.Float64frombits(v)}, err
	default:
		return nil, corruptf("unknown basic type %d at offset %d", t, r.Pos()-1)
	}
}

// addRoots creates the collected roots in file order. Thread references are
// looked up now because thread records may follow the roots that name them.
func (l *Loader) addRoots(state *loadState) {
	missing := make(map[uint32]struct{})
	for _, p := range state.roots {
		referrer := p.referrerID
		var trace *model.StackTrace
		if p.hasThread {
			t, ok := state.threads[p.threadSerial]
			if ok {
				referrer = t.objectID
				trace = state.traces[t.stackSerial]
				if trace != nil && p.depth >= 0 {
					trace = trace.TraceForDepth(p.depth)
				}
			} else if _, seen := missing[p.threadSerial]; !seen {
				missing[p.threadSerial] = struct{}{}
				l.logger.Warn("Thread serial %d not found", p.threadSerial)
			}
		}
		state.snap.AddRoot(model.NewRoot(model.ID(p.objectID), model.ID(referrer), p.rootType, "", trace))
		state.stats.Roots++
	}
}

// bindSiteTraces attaches allocation traces once every trace is known.
func (l *Loader) bindSiteTraces(state *loadState) {
	for _, b := range state.sites {
		if trace, ok := state.traces[b.serial]; ok {
			state.snap.SetSiteTrace(b.obj, trace)
		}
	}
}

func (s *loadState) addRoot(p pendingRoot) {
	s.roots = append(s.roots, p)
}

func (s *loadState) bindSite(obj model.JavaHeapObject, serial uint32) {
	if serial == 0 {
		return
	}
	s.sites = append(s.sites, siteBinding{obj: obj, serial: serial})
}

func (s *loadState) nameFromID(logger utils.Logger, id uint64) string {
	if id == 0 {
		return ""
	}
	if name, ok := s.strings[id]; ok {
		return name
	}
	logger.Warn("Name not found for string id 0x%x", id)
	return fmt.Sprintf("unresolved name 0x%x", id)
}

// skipWithin skips n payload bytes of the sub-record for id, failing when
// they extend past the segment end.
func skipWithin(r *Reader, n, end int64, what string, id uint64) error {
	if r.Pos()+n > end {
		return fmt.Errorf("%w: %s 0x%x declares %d bytes, %d remain in segment",
			ErrSegmentOverrun, what, id, n, end-r.Pos())
	}
	return r.Skip(n)
}

func valueWidth(t byte, idSize int) (int, error) {
	sig := model.BasicType(t).Signature()
	if sig == 0 {
		return 0, corruptf("unknown basic type %d", t)
	}
	return model.SignatureWidth(sig, idSize), nil
}

// normalizeClassName converts JVM internal names to dotted names. Array
// descriptors keep their brackets: "[Ljava/lang/String;" becomes
// "[Ljava.lang.String;".
func normalizeClassName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
