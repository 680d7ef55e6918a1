package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-snapshot/internal/testutil"
	"github.com/heap-snapshot/pkg/utils"
)

func hierarchyFixture() *fixture {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(10, 1, "Base", NewJavaField("a", "I"))
	f.class(11, 10, "Mid", NewJavaField("b", "J"))
	f.class(12, 11, "Leaf", NewJavaField("c", "B"))
	// leaf fields first in the record
	data := f.values().Byte(7).Long(42).Int(-3).Bytes()
	f.instance(100, 12, data)
	return f
}

func TestJavaClass_FieldCountInvariant(t *testing.T) {
	s := hierarchyFixture().build(t)
	s.Resolve(false)

	for _, c := range s.Classes() {
		want := len(c.Fields())
		if sc := c.Superclass(); sc != nil {
			want += sc.NumFieldsForInstance()
		}
		assert.Equal(t, want, c.NumFieldsForInstance(), c.Name())
	}
	assert.Equal(t, 3, s.FindClass("Leaf").NumFieldsForInstance())
	assert.Equal(t, 2, s.FindClass("Mid").NumFieldsForInstance())
}

func TestJavaClass_FieldOrderSuperclassFirst(t *testing.T) {
	s := hierarchyFixture().build(t)
	s.Resolve(false)

	leaf := s.FindClass("Leaf")
	var names []string
	for _, f := range leaf.FieldsForInstance() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	tests := []struct {
		index     int
		wantClass string
		wantLocal int
	}{
		{0, "Base", 0},
		{1, "Mid", 0},
		{2, "Leaf", 0},
	}
	for _, tt := range tests {
		c, local := leaf.ClassForField(tt.index)
		assert.Equal(t, tt.wantClass, c.Name())
		assert.Equal(t, tt.wantLocal, local)
	}
	assert.Equal(t, "b", leaf.FieldForInstance(1).Name())

	obj := s.FindThing(100).(*JavaObject)
	assert.Equal(t, []JavaThing{JavaInt{Value: -3}, JavaLong{Value: 42}, JavaByte{Value: 7}}, obj.Fields())
	assert.Equal(t, JavaLong{Value: 42}, obj.Field("b"))
	assert.Nil(t, obj.Field("missing"))
}

func TestJavaClass_ResolveIdempotent(t *testing.T) {
	s := hierarchyFixture().build(t)
	s.Resolve(false)

	mid := s.FindClass("Mid")
	leaf := s.FindClass("Leaf")
	obj := s.FindThing(100)
	total := leaf.NumFieldsForInstance()

	leaf.Resolve()
	mid.Resolve()
	obj.Resolve()
	s.Resolve(true)

	assert.Equal(t, total, leaf.NumFieldsForInstance())
	assert.Len(t, mid.Subclasses(), 1)
	assert.Len(t, leaf.Instances(false), 1)
	assert.Equal(t, StateResolved, s.State())
}

func TestJavaClass_UnresolvedSuperclass(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0x3e7, "Orphan", NewJavaField("x", "I"))
	s := f.build(t, opt)

	assert.NotPanics(t, func() { s.Resolve(false) })
	c := s.FindClass("Orphan")
	assert.Nil(t, c.Superclass())
	assert.Equal(t, 1, c.NumFieldsForInstance())
	assert.GreaterOrEqual(t, rec.Count(utils.LevelWarn, "0x3e7"), 1)
}

func TestJavaClass_SuperclassNotAClass(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.instance(50, 1, nil)
	f.class(2, 50, "Confused")
	s := f.build(t, opt)
	s.Resolve(false)

	assert.Nil(t, s.FindClass("Confused").Superclass())
	assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Superclass of Confused is not a class"))
}

func TestJavaClass_SuperclassCycle(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(10, 1, "java.lang.ref.Reference", ref("referent"))
	f.class(20, 21, "A", ref("peer"))
	f.class(21, 20, "B")
	f.class(22, 22, "Self", NewJavaField("x", "I"))
	f.class(23, 1, "Target")
	f.instance(100, 20, f.values().ID(101).Bytes())
	f.instance(101, 23, nil)
	f.root(NewRoot(100, 0, RootUnknown, "", nil))
	s := f.build(t, opt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Resolve(true)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolve did not finish")
	}

	a, b := s.FindClass("A"), s.FindClass("B")
	assert.True(t, a.Superclass() == nil || b.Superclass() == nil, "cycle should be cut")
	assert.Equal(t, 2, rec.Count(utils.LevelWarn, "loops back"))
	assert.Nil(t, s.FindClass("Self").Superclass())
	assert.Equal(t, 1, s.FindClass("Self").NumFieldsForInstance())

	for _, c := range []*JavaClass{a, b} {
		want := len(c.Fields())
		if sc := c.Superclass(); sc != nil {
			want += sc.NumFieldsForInstance()
		}
		assert.Equal(t, want, c.NumFieldsForInstance(), c.Name())
		assert.Len(t, c.FieldsForInstance(), c.NumFieldsForInstance(), c.Name())
	}
	assert.False(t, s.WeakReferenceClass().IsAssignableFrom(a))

	chains := s.RootsetReferencesTo(s.FindThing(101), false)
	require.Len(t, chains, 1)
	assert.Equal(t, ID(100), chains[0].Obj().ID())
}

func TestJavaClass_StaticRoots(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.classInfo(ClassInfo{ID: 2, SuperID: 1, Name: "Boot", Statics: []*JavaStatic{
		NewJavaStatic(ref("held"), NewObjectRef(100)),
		NewJavaStatic(NewJavaField("count", "I"), JavaInt{Value: 5}),
		NewJavaStatic(ref("empty"), NewObjectRef(0)),
	}})
	f.classInfo(ClassInfo{ID: 3, SuperID: 1, LoaderID: 101, Name: "App", Statics: []*JavaStatic{
		NewJavaStatic(ref("held"), NewObjectRef(100)),
	}})
	f.instance(100, 1, nil)
	f.instance(101, 1, nil)
	s := f.build(t)
	s.Resolve(true)

	roots := s.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, RootJavaStatic, roots[0].Type())
	assert.Equal(t, ID(100), roots[0].ID())
	assert.Equal(t, "Static reference from Boot.held", roots[0].Description())
	assert.Same(t, s.FindClass("Boot"), roots[0].Referrer())

	boot := s.FindClass("Boot")
	assert.True(t, boot.IsBootstrap())
	assert.False(t, s.FindClass("App").IsBootstrap())
	assert.Equal(t, JavaInt{Value: 5}, boot.StaticField("count"))
	assert.Equal(t, s.NullThing(), boot.StaticField("empty"))
	assert.Nil(t, boot.StaticField("nope"))
	assert.Equal(t, "static field held", boot.DescribeReferenceTo(s.FindThing(100)))
	assert.Equal(t, "??", boot.DescribeReferenceTo(s.FindThing(101)))
}

func TestJavaClass_Hierarchy(t *testing.T) {
	f := hierarchyFixture()
	f.instance(101, 11, f.values().Long(1).Int(2).Bytes())
	s := f.build(t)
	s.Resolve(false)

	base := s.FindClass("Base")
	mid := s.FindClass("Mid")
	leaf := s.FindClass("Leaf")

	assert.True(t, base.IsAssignableFrom(leaf))
	assert.False(t, leaf.IsAssignableFrom(base))
	assert.False(t, base.IsAssignableFrom(nil))

	assert.Equal(t, 0, base.InstancesCount(false))
	assert.Equal(t, 2, base.InstancesCount(true))
	assert.Len(t, mid.Instances(true), 2)
	assert.Equal(t, int64(13+8)+int64(12+8), base.TotalInstanceSize(true))
	assert.Equal(t, int64(1+8), leaf.InstanceSize())
	assert.Equal(t, "class Leaf", leaf.String())
	assert.False(t, leaf.IsArray())
}

func TestJavaClass_NameCollision(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "Dup")
	f.class(2, 0, "Dup")
	s := f.build(t)

	assert.Equal(t, ID(1), s.FindClass("Dup").ID())
	require.NotNil(t, s.FindClass("Dup-0x2"))
	assert.Equal(t, ID(2), s.FindClass("Dup-0x2").ID())
	assert.Equal(t, ID(2), s.FindClass("0x2").ID())
	assert.Nil(t, s.FindClass("0xzz"))
	assert.Len(t, s.Classes(), 2)
}

func TestJavaClass_ZeroFields(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(8)
	f.class(1, 0, "Empty")
	f.instance(100, 1, nil)
	s := f.build(t, opt)
	s.Resolve(false)

	obj := s.FindThing(100).(*JavaObject)
	assert.NotNil(t, obj.Fields())
	assert.Empty(t, obj.Fields())
	assert.Equal(t, int64(16), obj.Size())
	assert.Equal(t, 0, rec.Count(utils.LevelError, ""))
}

func TestJavaClass_SizeUsesJavaLangClass(t *testing.T) {
	f := newFixture(4)
	f.classInfo(ClassInfo{ID: 1, Name: "java.lang.Class", InstanceSize: 40})
	f.class(2, 0, "Other")
	s := f.build(t)
	s.Resolve(false)

	assert.Equal(t, int64(48), s.FindClass("Other").Size())
	assert.Same(t, s.FindClass("java.lang.Class"), s.FindClass("Other").Clazz())
	// the String and ClassLoader placeholders register as well
	assert.Equal(t, 4, s.JavaLangClass().InstancesCount(false))
}

func TestJavaClass_SignatureWidths(t *testing.T) {
	assert.Equal(t, 8, SignatureWidth('L', 8))
	assert.Equal(t, 4, SignatureWidth('[', 4))
	assert.Equal(t, 2, SignatureWidth('C', 4))
	assert.Equal(t, 0, SignatureWidth('X', 4))
	assert.Equal(t, byte('J'), BasicType(testutil.TypeLong).Signature())
}
