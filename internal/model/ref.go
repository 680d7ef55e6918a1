package model

// ObjectRef is a reference that has not been looked up yet. It only knows
// the id it points at.
type ObjectRef struct {
	id ID
}

// NewObjectRef creates a deferred reference to id.
func NewObjectRef(id ID) ObjectRef {
	return ObjectRef{id: id}
}

// ID returns the referenced id.
func (r ObjectRef) ID() ID { return r.id }
func (r ObjectRef) Size() int64 { return 0 }
func (r ObjectRef) IsHeapAllocated() bool { return true }
func (r ObjectRef) String() string { return "Unresolved object " + r.id.Hex() }

// Dereference looks the id up in s. Id 0 yields the null thing. A field
// whose signature holds no id (a primitive) yields the raw value as a long.
// A missing object yields an "Unresolved object" placeholder, logged when
// verbose unless the snapshot tolerates unresolved objects.
func (r ObjectRef) Dereference(s *Snapshot, field *JavaField, verbose bool) JavaThing {
	if field != nil && !field.HasID() {
		return JavaLong{Value: int64(r.id)}
	}
	if r.id == 0 {
		return s.NullThing()
	}
	if t := s.FindThing(r.id); t != nil {
		return t
	}
	if verbose && !s.UnresolvedObjectsOK() {
		if field != nil {
			s.logger.Warn("Failed to resolve object id %s for field %s (signature %s)", r.id.Hex(), field.Name(), field.Signature())
		} else {
			s.logger.Warn("Failed to resolve object id %s", r.id.Hex())
		}
	}
	return NewHackJavaValue(r.String(), 0)
}

// Deferred is a slot that starts as an id and becomes the thing it names.
// The zero value is an unresolved reference to null.
type Deferred struct {
	ref   ObjectRef
	thing JavaThing
}

// Unresolved makes a slot holding id.
func Unresolved(id ID) Deferred {
	return Deferred{ref: NewObjectRef(id)}
}

// Resolved makes a slot that already holds t.
func Resolved(t JavaThing) Deferred {
	return Deferred{thing: t}
}

// IsResolved reports whether the slot has been dereferenced.
func (d Deferred) IsResolved() bool {
	return d.thing != nil
}

// ID returns the id the slot was created with, or the id of the resolved
// heap object.
func (d Deferred) ID() ID {
	if h, ok := d.thing.(JavaHeapObject); ok {
		return h.ID()
	}
	return d.ref.id
}

// Thing returns the resolved value, or the ObjectRef while unresolved.
func (d Deferred) Thing() JavaThing {
	if d.thing != nil {
		return d.thing
	}
	return d.ref
}

func (d Deferred) resolve(s *Snapshot, field *JavaField) Deferred {
	if d.thing != nil {
		return d
	}
	return Deferred{ref: d.ref, thing: d.ref.Dereference(s, field, true)}
}
