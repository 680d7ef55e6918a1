package model

import (
	apperrors "github.com/heap-snapshot/pkg/errors"
)

// JavaHeapObject is a class, instance or array living in the dumped heap.
type JavaHeapObject interface {
	JavaThing
	ID() ID
	Kind() Kind
	// Clazz is nil until the object is resolved.
	Clazz() *JavaClass
	// Resolve links the object into its snapshot. Calling it again is a
	// no-op.
	Resolve()
	// Referrers panics unless the snapshot was resolved with reference
	// calculation.
	Referrers() []JavaHeapObject
	// Root returns the most interesting root that targets the object.
	Root() *Root
	IsNew() bool
	SiteTrace() *StackTrace
	DescribeReferenceTo(target JavaThing) string
	RefersOnlyWeaklyTo(other JavaThing) bool

	base() *heapBase
}

// heapBase carries what every heap kind shares: the owning snapshot and
// the referrer list.
type heapBase struct {
	snap      *Snapshot
	referrers []JavaHeapObject
	// finalized is set once referrers are deduplicated; appends after that
	// point are a programming error.
	finalized bool
}

func (h *heapBase) base() *heapBase { return h }

func (h *heapBase) IsHeapAllocated() bool { return true }

func (h *heapBase) addReferenceFrom(other JavaHeapObject) {
	if h.finalized {
		panic(apperrors.New(apperrors.CodeMisuse, "referrer added after referrers were finalized"))
	}
	h.referrers = append(h.referrers, other)
}

// setupReferrers drops duplicate referrers, keeping first-seen order.
func (h *heapBase) setupReferrers() {
	if len(h.referrers) > 1 {
		seen := make(map[JavaHeapObject]struct{}, len(h.referrers))
		unique := make([]JavaHeapObject, 0, len(h.referrers))
		for _, r := range h.referrers {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			unique = append(unique, r)
		}
		h.referrers = unique
	}
	h.finalized = true
}

func (h *heapBase) Referrers() []JavaHeapObject {
	if !h.finalized {
		panic(apperrors.New(apperrors.CodeMisuse, "referrers queried before they were computed"))
	}
	out := make([]JavaHeapObject, len(h.referrers))
	copy(out, h.referrers)
	return out
}

// lazyObject is a heap object whose payload stays in the buffer. offset
// points at the object id, just after the sub-record tag.
type lazyObject struct {
	heapBase
	offset int64
}

// ID reads the id from the record.
func (l *lazyObject) ID() ID {
	id, err := l.snap.readID(l.offset)
	if err != nil {
		l.snap.logger.Error("Failed to read id at offset %d: %v", l.offset, err)
		return 0
	}
	return id
}

// Offset returns the record offset.
func (l *lazyObject) Offset() int64 {
	return l.offset
}

// readLength reads the declared int at pos, logging and returning 0 on
// failure or when the value is negative.
func (l *lazyObject) readLength(pos int64) int64 {
	v, err := l.snap.buf.GetInt(pos)
	if err != nil {
		l.snap.logger.Error("Failed to read value length at offset %d: %v", pos, err)
		return 0
	}
	if v < 0 {
		l.snap.logger.Error("Negative value length %d at offset %d", v, pos)
		return 0
	}
	return int64(v)
}

// visitReferencedObjects calls visit for each heap object o points at. A
// non-nil exclude may veto individual fields.
func visitReferencedObjects(o JavaHeapObject, visit func(JavaHeapObject), exclude func(*JavaClass, *JavaField) bool) {
	if c := o.Clazz(); c != nil {
		visit(c)
	}
	switch t := o.(type) {
	case *JavaClass:
		if t.superclass != nil {
			visit(t.superclass)
		}
		for _, d := range []Deferred{t.loader, t.signers, t.protectionDomain} {
			if h, ok := d.thing.(JavaHeapObject); ok {
				visit(h)
			}
		}
		for _, st := range t.statics {
			if !st.field.HasID() || (exclude != nil && exclude(t, st.field)) {
				continue
			}
			if h, ok := st.Value().(JavaHeapObject); ok {
				visit(h)
			}
		}
	case *JavaObject:
		cl := t.Clazz()
		for i, v := range t.Fields() {
			if v == nil {
				continue
			}
			if exclude != nil {
				declaring, local := cl.ClassForField(i)
				if exclude(declaring, declaring.fields[local]) {
					continue
				}
			}
			if h, ok := v.(JavaHeapObject); ok {
				visit(h)
			}
		}
	case *JavaObjectArray:
		for _, e := range t.Elements() {
			if e != nil {
				visit(e)
			}
		}
	case *JavaValueArray:
		// only the class
	}
}

func describeUnknownReference() string {
	return "??"
}

func heapObjectString(o JavaHeapObject) string {
	name := "<unresolved>"
	if c := o.Clazz(); c != nil {
		name = c.Name()
	}
	return name + "@" + o.ID().Hex()
}
