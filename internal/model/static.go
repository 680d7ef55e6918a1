package model

// JavaStatic is one static field slot of a class.
type JavaStatic struct {
	field *JavaField
	value Deferred
}

// NewJavaStatic creates a static slot. An ObjectRef value stays deferred
// until the owning class resolves.
func NewJavaStatic(field *JavaField, value JavaThing) *JavaStatic {
	if ref, ok := value.(ObjectRef); ok {
		return &JavaStatic{field: field, value: Unresolved(ref.ID())}
	}
	return &JavaStatic{field: field, value: Resolved(value)}
}

// Field returns the field descriptor.
func (s *JavaStatic) Field() *JavaField { return s.field }

// Value returns the current value; an ObjectRef before resolution.
func (s *JavaStatic) Value() JavaThing { return s.value.Thing() }

// resolve dereferences the value. A heap object held by a class of the
// boot loader becomes a JAVA_STATIC root.
func (s *JavaStatic) resolve(clazz *JavaClass, snap *Snapshot) {
	if s.value.IsResolved() {
		return
	}
	id := s.value.ref.ID()
	s.value = s.value.resolve(snap, s.field)
	if _, ok := s.value.thing.(JavaHeapObject); ok && clazz.IsBootstrap() {
		desc := "Static reference from " + clazz.Name() + "." + s.field.Name()
		snap.AddRoot(NewRoot(id, clazz.ID(), RootJavaStatic, desc, nil))
	}
}
