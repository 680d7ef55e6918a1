package model

import (
	"sort"
	"strings"
)

// JavaClass is a loaded class. Its superclass, loader, signers and
// protection domain start out as ids and are linked by Resolve.
type JavaClass struct {
	heapBase
	id   ID
	name string

	super            Deferred
	superclass       *JavaClass
	loader           Deferred
	signers          Deferred
	protectionDomain Deferred

	fields  []*JavaField
	statics []*JavaStatic

	subclasses []*JavaClass
	instances  []JavaHeapObject

	// totalNumFields is the own field count plus the superclass total.
	totalNumFields int
	// instanceSize is the declared instance size in bytes, without header.
	instanceSize int

	superResolved  bool
	superResolving bool
	resolved       bool
}

// ClassInfo carries the contents of a class dump record.
type ClassInfo struct {
	ID                 ID
	Name               string
	SuperID            ID
	LoaderID           ID
	SignersID          ID
	ProtectionDomainID ID
	Fields             []*JavaField
	Statics            []*JavaStatic
	InstanceSize       int
}

// NewJavaClass creates an unresolved class. Add it to a snapshot with
// Snapshot.AddClass.
func NewJavaClass(info ClassInfo) *JavaClass {
	return &JavaClass{
		id:               info.ID,
		name:             info.Name,
		super:            Unresolved(info.SuperID),
		loader:           Unresolved(info.LoaderID),
		signers:          Unresolved(info.SignersID),
		protectionDomain: Unresolved(info.ProtectionDomainID),
		fields:           info.Fields,
		statics:          info.Statics,
		instanceSize:     info.InstanceSize,
		totalNumFields:   len(info.Fields),
	}
}

func (c *JavaClass) ID() ID { return c.id }
func (c *JavaClass) Kind() Kind { return KindClass }

// Name returns the class name with '.' separators.
func (c *JavaClass) Name() string { return c.name }

func (c *JavaClass) String() string { return "class " + c.name }

// Clazz is java.lang.Class.
func (c *JavaClass) Clazz() *JavaClass {
	if c.snap == nil {
		return nil
	}
	return c.snap.javaLangClass
}

// Size is the instance size of java.lang.Class.
func (c *JavaClass) Size() int64 {
	if c.snap == nil || c.snap.javaLangClass == nil {
		return 0
	}
	return c.snap.javaLangClass.InstanceSize()
}

// InstanceSize is the declared instance size plus the object header.
func (c *JavaClass) InstanceSize() int64 {
	var header int64
	if c.snap != nil {
		header = c.snap.minimumObjectSize
	}
	return int64(c.instanceSize) + header
}

// Resolve links the class: superclass chain and field totals, subclass
// registration, loader, signers and protection domain, statics, and
// finally registration as an instance of java.lang.Class.
func (c *JavaClass) Resolve() {
	if c.resolved {
		return
	}
	c.resolved = true
	s := c.snap

	c.resolveSuperclass(s)
	if c.superclass != nil {
		c.superclass.addSubclass(c)
	}

	c.loader = c.loader.resolve(s, nil)
	c.signers = c.signers.resolve(s, nil)
	c.protectionDomain = c.protectionDomain.resolve(s, nil)

	for _, st := range c.statics {
		st.resolve(c, s)
	}
	if s.javaLangClass != nil {
		s.javaLangClass.addInstance(c)
	}
}

func (c *JavaClass) resolveSuperclass(s *Snapshot) {
	if c.superResolved {
		return
	}
	c.superResolved = true
	c.superResolving = true
	defer func() { c.superResolving = false }()
	c.totalNumFields = len(c.fields)

	c.super = c.super.resolve(s, nil)
	switch t := c.super.thing.(type) {
	case *JavaClass:
		// A class already on the resolve path closes a cycle; cut it here
		// so every walk up the chain terminates.
		if t.superResolving {
			s.logger.Warn("Superclass chain of %s loops back through %s", c.name, t.name)
			return
		}
		t.resolveSuperclass(s)
		c.superclass = t
		c.totalNumFields += t.totalNumFields
	default:
		if t != s.NullThing() {
			s.logger.Warn("Superclass of %s is not a class: %s", c.name, t)
		}
	}
}

// Superclass returns the resolved superclass, nil for a hierarchy root.
func (c *JavaClass) Superclass() *JavaClass { return c.superclass }

// Loader returns the class loader; the null thing for the boot loader.
func (c *JavaClass) Loader() JavaThing { return c.loader.Thing() }

// Signers returns the signers object.
func (c *JavaClass) Signers() JavaThing { return c.signers.Thing() }

// ProtectionDomain returns the protection domain object.
func (c *JavaClass) ProtectionDomain() JavaThing { return c.protectionDomain.Thing() }

// IsBootstrap reports whether the class was loaded by the boot loader.
func (c *JavaClass) IsBootstrap() bool {
	return c.snap != nil && c.loader.Thing() == c.snap.NullThing()
}

// IsString reports whether the class is java.lang.String.
func (c *JavaClass) IsString() bool {
	return c.snap != nil && c.snap.javaLangString == c
}

// IsArray reports whether the class is an array type.
func (c *JavaClass) IsArray() bool {
	return strings.HasPrefix(c.name, "[")
}

// Fields returns the fields declared by this class itself.
func (c *JavaClass) Fields() []*JavaField { return c.fields }

// Statics returns the static slots.
func (c *JavaClass) Statics() []*JavaStatic { return c.statics }

// StaticField returns the value of the named static, or nil.
func (c *JavaClass) StaticField(name string) JavaThing {
	for _, st := range c.statics {
		if st.field.name == name {
			return st.Value()
		}
	}
	return nil
}

// NumFieldsForInstance returns the total instance field count including
// inherited fields.
func (c *JavaClass) NumFieldsForInstance() int { return c.totalNumFields }

// FieldsForInstance returns every instance field, superclass fields first.
func (c *JavaClass) FieldsForInstance() []*JavaField {
	out := make([]*JavaField, 0, c.totalNumFields)
	var chain []*JavaClass
	for cl := c; cl != nil; cl = cl.superclass {
		chain = append(chain, cl)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].fields...)
	}
	return out
}

// ClassForField maps a superclass-first instance field index to the class
// that declares the field and the field's index within that class.
func (c *JavaClass) ClassForField(i int) (*JavaClass, int) {
	cl := c
	for cl.superclass != nil {
		sc := cl.superclass
		if i < sc.totalNumFields {
			cl = sc
			continue
		}
		i -= sc.totalNumFields
		break
	}
	return cl, i
}

// FieldForInstance returns the field at a superclass-first instance index.
func (c *JavaClass) FieldForInstance(i int) *JavaField {
	cl, local := c.ClassForField(i)
	return cl.fields[local]
}

// IsAssignableFrom reports whether other is c or a subclass of c.
func (c *JavaClass) IsAssignableFrom(other *JavaClass) bool {
	for cl := other; cl != nil; cl = cl.superclass {
		if cl == c {
			return true
		}
	}
	return false
}

// Subclasses returns the direct subclasses.
func (c *JavaClass) Subclasses() []*JavaClass { return c.subclasses }

func (c *JavaClass) addSubclass(sub *JavaClass) {
	c.subclasses = append(c.subclasses, sub)
}

func (c *JavaClass) addInstance(o JavaHeapObject) {
	c.instances = append(c.instances, o)
}

// Instances returns the live instances, optionally with those of every
// subclass.
func (c *JavaClass) Instances(includeSubclasses bool) []JavaHeapObject {
	if !includeSubclasses {
		out := make([]JavaHeapObject, len(c.instances))
		copy(out, c.instances)
		return out
	}
	var out []JavaHeapObject
	c.walkHierarchy(func(cl *JavaClass) {
		out = append(out, cl.instances...)
	})
	return out
}

// InstancesCount counts instances, optionally with subclasses.
func (c *JavaClass) InstancesCount(includeSubclasses bool) int {
	if !includeSubclasses {
		return len(c.instances)
	}
	n := 0
	c.walkHierarchy(func(cl *JavaClass) { n += len(cl.instances) })
	return n
}

// TotalInstanceSize sums the sizes of the instances.
func (c *JavaClass) TotalInstanceSize(includeSubclasses bool) int64 {
	var total int64
	add := func(cl *JavaClass) {
		for _, o := range cl.instances {
			total += o.Size()
		}
	}
	if includeSubclasses {
		c.walkHierarchy(add)
	} else {
		add(c)
	}
	return total
}

func (c *JavaClass) walkHierarchy(fn func(*JavaClass)) {
	seen := map[*JavaClass]struct{}{}
	stack := []*JavaClass{c}
	for len(stack) > 0 {
		cl := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cl]; ok {
			continue
		}
		seen[cl] = struct{}{}
		fn(cl)
		stack = append(stack, cl.subclasses...)
	}
}

func (c *JavaClass) Root() *Root { return c.snap.rootOf(c) }
func (c *JavaClass) IsNew() bool { return c.snap.IsNewObject(c) }
func (c *JavaClass) SiteTrace() *StackTrace { return c.snap.SiteTrace(c) }
func (c *JavaClass) RefersOnlyWeaklyTo(JavaThing) bool { return false }

// DescribeReferenceTo names the static field holding target.
func (c *JavaClass) DescribeReferenceTo(target JavaThing) string {
	for _, st := range c.statics {
		if st.field.HasID() && st.Value() == target {
			return "static field " + st.field.name
		}
	}
	return describeUnknownReference()
}

func sortClassesByName(classes []*JavaClass) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].name != classes[j].name {
			return classes[i].name < classes[j].name
		}
		return classes[i].id < classes[j].id
	})
}
