package model

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/heap-snapshot/internal/buffer"
	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/utils"
)

// State is the lifecycle stage of a snapshot.
type State int

const (
	StateUnresolved State = iota
	StateClassesResolved
	StateResolved
	StateReferencesChased
	StateClosed
)

const otherArrayTypeName = "[<other>"

// Snapshot owns every class, object and root of one heap dump.
type Snapshot struct {
	buf    buffer.ReadBuffer
	readMu sync.Mutex
	cache  ValueCache
	logger utils.Logger

	idSize             int
	idMask             ID
	minimumObjectSize  int64
	newStyleArrayClass bool
	unresolvedOK       bool

	objects     []JavaHeapObject
	heapObjects map[ID]JavaHeapObject
	fakeClasses map[ID]*JavaClass
	fakeOrder   []*JavaClass
	nextFakeID  ID
	classes     map[string]*JavaClass
	roots       []*Root
	rootsMap    map[JavaHeapObject]*Root

	siteMu     sync.RWMutex
	siteTraces map[JavaHeapObject]*StackTrace

	newMu      sync.RWMutex
	hasNewSet  bool
	newObjects map[JavaHeapObject]struct{}

	nullThing           *HackJavaValue
	javaLangClass       *JavaClass
	javaLangString      *JavaClass
	javaLangClassLoader *JavaClass
	weakReferenceClass  *JavaClass
	referentFieldIndex  int

	otherArrayOnce sync.Once
	otherArrayType *JavaClass

	state State
}

// Option configures a Snapshot.
type Option func(*Snapshot)

// WithLogger sets the diagnostics logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Snapshot) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithValueCache sets the payload cache policy.
func WithValueCache(cache ValueCache) Option {
	return func(s *Snapshot) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// NewSnapshot creates an empty snapshot reading payloads from buf. The
// identifier size defaults to 4.
func NewSnapshot(buf buffer.ReadBuffer, opts ...Option) *Snapshot {
	s := &Snapshot{
		buf:         buf,
		cache:       NoValueCache{},
		logger:      &utils.NullLogger{},
		heapObjects: make(map[ID]JavaHeapObject),
		fakeClasses: make(map[ID]*JavaClass),
		classes:     make(map[string]*JavaClass),
		rootsMap:    make(map[JavaHeapObject]*Root),
		nullThing:   NewHackJavaValue("<null>", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	_ = s.SetIdentifierSize(4)
	return s
}

// SetIdentifierSize sets the id width. It must be called before any object
// is added.
func (s *Snapshot) SetIdentifierSize(size int) error {
	switch size {
	case 4:
		s.idMask = 0xFFFFFFFF
	case 8:
		s.idMask = ^ID(0)
	default:
		return apperrors.Newf(apperrors.CodeUnsupportedFormat, "unsupported identifier size %d", size)
	}
	s.idSize = size
	s.minimumObjectSize = 2 * int64(size)
	s.nextFakeID = s.idMask
	return nil
}

// IdentifierSize returns the id width in bytes.
func (s *Snapshot) IdentifierSize() int { return s.idSize }

// MinimumObjectSize is the per-object header size, twice the id width.
func (s *Snapshot) MinimumObjectSize() int64 { return s.minimumObjectSize }

// SetNewStyleArrayClass selects whether object array records name the
// array class (true) or the element class.
func (s *Snapshot) SetNewStyleArrayClass(v bool) { s.newStyleArrayClass = v }

// NewStyleArrayClass reports the array class convention.
func (s *Snapshot) NewStyleArrayClass() bool { return s.newStyleArrayClass }

// SetUnresolvedObjectsOK silences warnings for dangling ids.
func (s *Snapshot) SetUnresolvedObjectsOK(v bool) { s.unresolvedOK = v }

// UnresolvedObjectsOK reports whether dangling ids are tolerated silently.
func (s *Snapshot) UnresolvedObjectsOK() bool { return s.unresolvedOK }

// Logger returns the diagnostics logger.
func (s *Snapshot) Logger() utils.Logger { return s.logger }

// NullThing stands for the null reference.
func (s *Snapshot) NullThing() JavaThing { return s.nullThing }

// State returns the lifecycle stage.
func (s *Snapshot) State() State { return s.state }

func (s *Snapshot) mask(id ID) ID { return id & s.idMask }

func (s *Snapshot) readID(pos int64) (ID, error) {
	v, err := buffer.GetID(s.buf, pos, s.idSize)
	return ID(v), err
}

// readPayload returns length bytes at pos, consulting the value cache.
func (s *Snapshot) readPayload(pos, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	if b, ok := s.cache.Get(pos); ok {
		return b, nil
	}
	p := make([]byte, length)
	s.readMu.Lock()
	err := s.buf.Get(pos, p)
	s.readMu.Unlock()
	if err != nil {
		return nil, err
	}
	s.cache.Add(pos, p)
	return p, nil
}

// AddClass registers c. A name already taken gets a "-0x<id>" suffix in
// the name table.
func (s *Snapshot) AddClass(c *JavaClass) {
	c.id = s.mask(c.id)
	c.snap = s
	name := c.name
	if _, ok := s.classes[name]; ok {
		name += "-" + c.id.Hex()
	}
	s.classes[name] = c
	s.addHeapObject(c.id, c)
}

// AddInstance registers the instance record at offset.
func (s *Snapshot) AddInstance(id, classID ID, offset int64) *JavaObject {
	o := &JavaObject{lazyObject: lazyObject{heapBase: heapBase{snap: s}, offset: offset}, classID: s.mask(classID)}
	s.addHeapObject(s.mask(id), o)
	return o
}

// AddObjectArray registers the object array record at offset.
func (s *Snapshot) AddObjectArray(id, classID ID, offset int64) *JavaObjectArray {
	a := &JavaObjectArray{lazyObject: lazyObject{heapBase: heapBase{snap: s}, offset: offset}, classID: s.mask(classID)}
	s.addHeapObject(s.mask(id), a)
	return a
}

// AddValueArray registers the primitive array record at offset.
func (s *Snapshot) AddValueArray(id ID, offset int64) *JavaValueArray {
	a := &JavaValueArray{lazyObject: lazyObject{heapBase: heapBase{snap: s}, offset: offset}}
	s.addHeapObject(s.mask(id), a)
	return a
}

func (s *Snapshot) addHeapObject(id ID, o JavaHeapObject) {
	if prev, dup := s.heapObjects[id]; dup {
		s.logger.Warn("Duplicate object id %s, keeping the later record", id.Hex())
		for i, existing := range s.objects {
			if existing == prev {
				s.objects[i] = o
				break
			}
		}
	} else {
		s.objects = append(s.objects, o)
	}
	s.heapObjects[id] = o
}

// AddRoot appends r and returns its index.
func (s *Snapshot) AddRoot(r *Root) int {
	r.id = s.mask(r.id)
	r.referrerID = s.mask(r.referrerID)
	r.index = len(s.roots)
	s.roots = append(s.roots, r)
	return r.index
}

// SetSiteTrace records the allocation site of obj. Empty traces are
// ignored.
func (s *Snapshot) SetSiteTrace(obj JavaHeapObject, trace *StackTrace) {
	if trace == nil || len(trace.frames) == 0 {
		return
	}
	s.siteMu.Lock()
	defer s.siteMu.Unlock()
	if s.siteTraces == nil {
		s.siteTraces = make(map[JavaHeapObject]*StackTrace)
	}
	s.siteTraces[obj] = trace
}

// SiteTrace returns the allocation site of obj, or nil.
func (s *Snapshot) SiteTrace(obj JavaHeapObject) *StackTrace {
	s.siteMu.RLock()
	defer s.siteMu.RUnlock()
	if s.siteTraces == nil {
		return nil
	}
	return s.siteTraces[obj]
}

func (s *Snapshot) resolveSiteTrace(obj JavaHeapObject) {
	if t := s.SiteTrace(obj); t != nil {
		t.resolve(s)
	}
}

// FindThing looks id up, including synthetic classes not merged yet.
// It returns nil when nothing has that id.
func (s *Snapshot) FindThing(id ID) JavaHeapObject {
	id = s.mask(id)
	if o, ok := s.heapObjects[id]; ok {
		return o
	}
	if c, ok := s.fakeClasses[id]; ok {
		return c
	}
	return nil
}

// FindClass looks a class up by name or by "0x<hex>" id.
func (s *Snapshot) FindClass(name string) *JavaClass {
	if strings.HasPrefix(name, "0x") {
		v, err := strconv.ParseUint(name[2:], 16, 64)
		if err != nil {
			return nil
		}
		c, _ := s.FindThing(ID(v)).(*JavaClass)
		return c
	}
	return s.classes[name]
}

// Classes returns every class ordered by name.
func (s *Snapshot) Classes() []*JavaClass {
	out := make([]*JavaClass, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sortClassesByName(out)
	return out
}

// Things returns every heap object in insertion order.
func (s *Snapshot) Things() []JavaHeapObject {
	out := make([]JavaHeapObject, len(s.objects))
	copy(out, s.objects)
	return out
}

// Instances returns the instances of the named class, nil when no such
// class exists.
func (s *Snapshot) Instances(className string, includeSubclasses bool) []JavaHeapObject {
	c := s.FindClass(className)
	if c == nil {
		return nil
	}
	return c.Instances(includeSubclasses)
}

// Roots returns the roots in insertion order.
func (s *Snapshot) Roots() []*Root {
	out := make([]*Root, len(s.roots))
	copy(out, s.roots)
	return out
}

// RootAt returns the root with index i.
func (s *Snapshot) RootAt(i int) *Root {
	if i < 0 || i >= len(s.roots) {
		return nil
	}
	return s.roots[i]
}

func (s *Snapshot) rootOf(o JavaHeapObject) *Root {
	return s.rootsMap[o]
}

func (s *Snapshot) addReferenceFromRoot(r *Root, o JavaHeapObject) {
	if existing, ok := s.rootsMap[o]; ok {
		s.rootsMap[o] = existing.MostInteresting(r)
		return
	}
	s.rootsMap[o] = r
}

// JavaLangClass returns java.lang.Class, possibly a placeholder.
func (s *Snapshot) JavaLangClass() *JavaClass { return s.javaLangClass }

// JavaLangString returns java.lang.String, possibly a placeholder.
func (s *Snapshot) JavaLangString() *JavaClass { return s.javaLangString }

// JavaLangClassLoader returns java.lang.ClassLoader, possibly a
// placeholder.
func (s *Snapshot) JavaLangClassLoader() *JavaClass { return s.javaLangClassLoader }

// WeakReferenceClass returns java.lang.ref.Reference, nil if absent.
func (s *Snapshot) WeakReferenceClass() *JavaClass { return s.weakReferenceClass }

// ReferentFieldIndex is the instance index of Reference.referent.
func (s *Snapshot) ReferentFieldIndex() int { return s.referentFieldIndex }

// allocFakeID returns an unused id counting down from the top of the id
// space.
func (s *Snapshot) allocFakeID() ID {
	for s.FindThing(s.nextFakeID) != nil {
		s.nextFakeID--
	}
	id := s.nextFakeID
	s.nextFakeID--
	return id
}

// addFakeClass keeps a synthetic class in the side table until Resolve
// merges it. Its name is visible to FindClass immediately.
func (s *Snapshot) addFakeClass(id ID, c *JavaClass) {
	c.id = s.mask(id)
	c.snap = s
	s.fakeClasses[c.id] = c
	s.fakeOrder = append(s.fakeOrder, c)
	name := c.name
	if _, ok := s.classes[name]; ok {
		name += "-" + c.id.Hex()
	}
	s.classes[name] = c
}

func (s *Snapshot) newFakeClass(name string, fields []*JavaField, instanceSize int) *JavaClass {
	return NewJavaClass(ClassInfo{Name: name, Fields: fields, InstanceSize: instanceSize})
}

// addFakeInstanceClass fabricates a class whose fields exactly cover
// instSize bytes: instSize/4 ints followed by instSize%4 bytes.
func (s *Snapshot) addFakeInstanceClass(classID ID, instSize int) *JavaClass {
	if instSize < 0 {
		instSize = 0
	}
	numInts, numBytes := instSize/4, instSize%4
	fields := make([]*JavaField, 0, numInts+numBytes)
	for i := 0; i < numInts; i++ {
		fields = append(fields, NewJavaField("unknown-field-"+strconv.Itoa(i), "I"))
	}
	for i := 0; i < numBytes; i++ {
		fields = append(fields, NewJavaField("unknown-field-"+strconv.Itoa(numInts+i), "B"))
	}
	c := s.newFakeClass("unknown-class<@"+classID.Hex()+">", fields, instSize)
	s.addFakeClass(classID, c)
	return c
}

// ArrayClass returns the class "[" + elementSignature, fabricating and
// resolving it when the dump has none.
func (s *Snapshot) ArrayClass(elementSignature string) *JavaClass {
	name := "[" + elementSignature
	if c := s.FindClass(name); c != nil {
		return c
	}
	c := s.newFakeClass(name, nil, 0)
	s.addFakeClass(s.allocFakeID(), c)
	c.Resolve()
	return c
}

// OtherArrayType is the shared class of arrays whose type cannot be
// determined. It is created on first use.
func (s *Snapshot) OtherArrayType() *JavaClass {
	s.otherArrayOnce.Do(func() {
		c := s.newFakeClass(otherArrayTypeName, nil, 0)
		s.addFakeClass(s.allocFakeID(), c)
		c.Resolve()
		s.otherArrayType = c
	})
	return s.otherArrayType
}

// MarkNewRelativeTo flags every object that baseline lacks, or holds with
// a different type, as new.
func (s *Snapshot) MarkNewRelativeTo(baseline *Snapshot) {
	fresh := make(map[JavaHeapObject]struct{})
	for _, t := range s.objects {
		id := t.ID()
		if id == 0 || id == s.idMask {
			continue
		}
		other := baseline.FindThing(id)
		if other == nil || !sameType(t, other) {
			fresh[t] = struct{}{}
		}
	}
	s.newMu.Lock()
	s.newObjects = fresh
	s.hasNewSet = true
	s.newMu.Unlock()
}

func sameType(a, b JavaHeapObject) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	ac, bc := a.Clazz(), b.Clazz()
	if ac == nil || bc == nil {
		return ac == bc
	}
	return ac.Name() == bc.Name()
}

// HasNewSet reports whether MarkNewRelativeTo ran.
func (s *Snapshot) HasNewSet() bool {
	s.newMu.RLock()
	defer s.newMu.RUnlock()
	return s.hasNewSet
}

// IsNewObject reports whether o was flagged by MarkNewRelativeTo.
func (s *Snapshot) IsNewObject(o JavaHeapObject) bool {
	s.newMu.RLock()
	defer s.newMu.RUnlock()
	if !s.hasNewSet {
		return false
	}
	_, ok := s.newObjects[o]
	return ok
}

// FinalizerObjects returns the referents queued for finalization, found
// by walking java.lang.ref.Finalizer.queue from its head.
func (s *Snapshot) FinalizerObjects() []JavaHeapObject {
	clazz := s.FindClass("java.lang.ref.Finalizer")
	if clazz == nil {
		return nil
	}
	queue, ok := clazz.StaticField("queue").(*JavaObject)
	if !ok {
		return nil
	}
	var out []JavaHeapObject
	seen := map[*JavaObject]struct{}{}
	head, _ := queue.Field("head").(*JavaObject)
	for head != nil {
		if _, loop := seen[head]; loop {
			break
		}
		seen[head] = struct{}{}
		if referent, ok := head.Field("referent").(JavaHeapObject); ok {
			out = append(out, referent)
		}
		head, _ = head.Field("next").(*JavaObject)
	}
	return out
}

// Close releases the backing buffer. The snapshot must not be queried
// afterwards.
func (s *Snapshot) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.buf == nil {
		return nil
	}
	return s.buf.Close()
}

// sortedKeys returns the keys of a set in order.
func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
