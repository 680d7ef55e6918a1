package model

import (
	"github.com/heap-snapshot/pkg/utils"
)

// Resolve links the snapshot. Classes resolve first so that every object
// finds a resolved class, then the remaining objects. Synthetic classes
// made along the way join the id table afterwards. With calculateRefs it
// also builds referrer lists and the object-to-root map. Calling Resolve
// again does nothing.
func (s *Snapshot) Resolve(calculateRefs bool) {
	if s.state != StateUnresolved {
		s.logger.Debug("Snapshot already resolved")
		return
	}
	timer := utils.NewTimer("resolve", utils.WithLogger(s.logger))
	s.logger.Info("Resolving %d objects...", len(s.objects))

	pt := timer.Start("classes")
	s.ensureWellKnownClasses()
	rootless := 0
	for _, t := range s.objects {
		if c, ok := t.(*JavaClass); ok {
			c.Resolve()
			if c.superclass == nil {
				rootless++
			}
		}
	}
	if rootless > 1 {
		s.logger.Debug("%d classes have no superclass", rootless)
	}
	s.state = StateClassesResolved
	pt.Stop()

	pt = timer.Start("objects")
	for _, t := range s.objects {
		if _, ok := t.(*JavaClass); !ok {
			t.Resolve()
		}
	}
	s.mergeFakeClasses()
	s.findWeakReferenceClass()
	for _, r := range s.roots {
		r.resolve(s)
	}
	s.state = StateResolved
	pt.Stop()

	if calculateRefs {
		pt = timer.Start("references")
		s.calculateReferencesToObjects()
		pt.Stop()

		pt = timer.Start("referrers")
		for _, t := range s.objects {
			t.base().setupReferrers()
		}
		s.state = StateReferencesChased
		pt.Stop()
	}
	timer.PrintSummary()
}

func (s *Snapshot) ensureWellKnownClasses() {
	var placeholders []*JavaClass
	ensure := func(name string) *JavaClass {
		if c := s.FindClass(name); c != nil {
			return c
		}
		s.logger.Warn("Class %s not found, adding fake class!", name)
		c := s.newFakeClass(name, nil, 0)
		s.addFakeClass(s.allocFakeID(), c)
		placeholders = append(placeholders, c)
		return c
	}
	s.javaLangClass = ensure("java.lang.Class")
	s.javaLangString = ensure("java.lang.String")
	s.javaLangClassLoader = ensure("java.lang.ClassLoader")
	for _, c := range placeholders {
		c.Resolve()
	}
}

func (s *Snapshot) mergeFakeClasses() {
	for _, c := range s.fakeOrder {
		s.heapObjects[c.id] = c
		s.objects = append(s.objects, c)
	}
	s.fakeClasses = make(map[ID]*JavaClass)
	s.fakeOrder = nil
}

func (s *Snapshot) findWeakReferenceClass() {
	s.weakReferenceClass = s.FindClass("java.lang.ref.Reference")
	s.referentFieldIndex = 0
	if s.weakReferenceClass == nil {
		return
	}
	for i, f := range s.weakReferenceClass.FieldsForInstance() {
		if f.name == "referent" {
			s.referentFieldIndex = i
			break
		}
	}
}

// calculateReferencesToObjects records a back-edge for every forward
// reference, then attaches each root to its target.
func (s *Snapshot) calculateReferencesToObjects() {
	for _, t := range s.objects {
		from := t
		visitReferencedObjects(t, func(other JavaHeapObject) {
			other.base().addReferenceFrom(from)
		}, nil)
	}
	for _, r := range s.roots {
		if t := s.FindThing(r.id); t != nil {
			s.addReferenceFromRoot(r, t)
		}
	}
}
