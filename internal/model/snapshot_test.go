package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/utils"
)

func twoClassFixture() *fixture {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.classInfo(ClassInfo{
		ID:           2,
		SuperID:      1,
		Name:         "Holder",
		Fields:       []*JavaField{ref("ref")},
		Statics:      []*JavaStatic{NewJavaStatic(NewJavaField("instance", "LHolder;"), NewObjectRef(100))},
		InstanceSize: 4,
	})
	f.instance(100, 2, f.values().ID(101).Bytes())
	f.instance(101, 1, nil)
	return f
}

func TestSnapshot_TwoClassGraph(t *testing.T) {
	s := twoClassFixture().build(t)
	s.Resolve(true)
	assert.Equal(t, StateReferencesChased, s.State())

	object := s.FindClass("java.lang.Object")
	holder := s.FindClass("Holder")
	assert.Same(t, object, holder.Superclass())
	assert.Contains(t, object.Subclasses(), holder)

	var statics []*Root
	for _, r := range s.Roots() {
		if r.Type() == RootJavaStatic {
			statics = append(statics, r)
		}
	}
	require.Len(t, statics, 1)
	instance := s.FindThing(100)
	assert.Equal(t, instance.ID(), statics[0].ID())
	assert.Same(t, statics[0], instance.Root())

	chains := s.RootsetReferencesTo(instance, false)
	require.Len(t, chains, 1)
	assert.Equal(t, 1, chains[0].Depth())

	leaf := s.FindThing(101)
	chains = s.RootsetReferencesTo(leaf, false)
	require.Len(t, chains, 1)
	assert.Equal(t, 2, chains[0].Depth())
	objs := chains[0].Objects()
	assert.Same(t, instance, objs[0])
	assert.Same(t, leaf, objs[1])
	assert.Nil(t, chains[0].Next().Next())
}

func TestSnapshot_ReferrersDeduplicated(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(2, 1, "Twice", ref("a"), ref("b"))
	f.instance(100, 2, f.values().ID(101).ID(101).Bytes())
	f.instance(101, 1, nil)
	s := f.build(t)
	s.Resolve(true)

	referrers := s.FindThing(101).Referrers()
	require.Len(t, referrers, 1)
	assert.Same(t, s.FindThing(100), referrers[0])

	for _, obj := range s.Things() {
		seen := map[JavaHeapObject]bool{}
		for _, r := range obj.Referrers() {
			assert.False(t, seen[r], "duplicate referrer of %s", obj)
			seen[r] = true
		}
	}
	// class objects are referred to by their instances and subclasses
	assert.Contains(t, s.FindClass("java.lang.Object").Referrers(), JavaHeapObject(s.FindClass("Twice")))
}

func TestSnapshot_MostInterestingRoot(t *testing.T) {
	for _, order := range [][]RootType{{RootUnknown, RootJavaStatic}, {RootJavaStatic, RootUnknown}} {
		f := newFixture(4)
		f.class(1, 0, "java.lang.Object")
		f.instance(100, 1, nil)
		for _, rt := range order {
			f.root(NewRoot(100, 0, rt, "", nil))
		}
		s := f.build(t)
		s.Resolve(true)

		root := s.FindThing(100).Root()
		require.NotNil(t, root)
		assert.Equal(t, RootJavaStatic, root.Type())
	}
}

func TestSnapshot_RootIndexAndDescription(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.instance(100, 1, nil)
	f.instance(200, 1, nil)
	f.root(NewRoot(100, 200, RootJavaLocal, "", NewStackTrace([]*StackFrame{{MethodName: "run", ClassName: "java.lang.Object", Line: 7}})))
	f.root(NewRoot(100, 0, RootNativeStatic, "global handle", nil))
	s := f.build(t)
	s.Resolve(false)

	roots := s.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, 0, roots[0].Index())
	assert.Equal(t, 1, roots[1].Index())
	assert.Same(t, roots[1], s.RootAt(1))
	assert.Nil(t, s.RootAt(2))

	assert.Equal(t, "Java Local Reference", roots[0].Description())
	assert.Equal(t, "global handle", roots[1].Description())
	assert.Equal(t, "JNI Global", roots[1].TypeName())
	assert.Same(t, s.FindThing(200), roots[0].Referrer())
	assert.Nil(t, roots[1].Referrer())
	assert.Same(t, s.FindClass("java.lang.Object"), roots[0].StackTrace().Frames()[0].Class())
	assert.Nil(t, s.FindThing(100).Root(), "the root map is built only with reference calculation")
}

func TestRootType_Names(t *testing.T) {
	tests := []struct {
		rt   RootType
		name string
	}{
		{RootInvalid, "Invalid (?!?)"},
		{RootUnknown, "Unknown"},
		{RootSystemClass, "System Class"},
		{RootNativeLocal, "JNI Local"},
		{RootNativeStatic, "JNI Global"},
		{RootThreadBlock, "Thread Block"},
		{RootBusyMonitor, "Busy Monitor"},
		{RootJavaLocal, "Java Local"},
		{RootNativeStack, "Native Stack (possibly Java local)"},
		{RootJavaStatic, "Java Static"},
		{RootType(42), "Invalid (?!?)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.rt.String())
	}

	low := NewRoot(1, 0, RootSystemClass, "", nil)
	high := NewRoot(1, 0, RootBusyMonitor, "", nil)
	assert.Same(t, high, low.MostInteresting(high))
	assert.Same(t, high, high.MostInteresting(low))
	assert.Same(t, low, low.MostInteresting(nil))
}

func TestSnapshot_ReferrersMisuse(t *testing.T) {
	t.Run("before resolve", func(t *testing.T) {
		s := twoClassFixture().build(t)
		assertMisusePanic(t, func() { s.FindThing(100).Referrers() })
	})

	t.Run("without reference calculation", func(t *testing.T) {
		s := twoClassFixture().build(t)
		s.Resolve(false)
		assertMisusePanic(t, func() { s.FindThing(100).Referrers() })
		assertMisusePanic(t, func() { s.RootsetReferencesTo(s.FindThing(101), false) })
	})

	t.Run("append after finalize", func(t *testing.T) {
		s := twoClassFixture().build(t)
		s.Resolve(true)
		target := s.FindThing(101)
		assertMisusePanic(t, func() { target.base().addReferenceFrom(s.FindThing(100)) })
	})
}

func weakFixture() *fixture {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(10, 1, "java.lang.ref.Reference", ref("referent"), ref("queue"))
	f.class(11, 10, "java.lang.ref.WeakReference")
	f.class(12, 1, "Target")
	f.instance(200, 11, f.values().ID(300).ID(0).Bytes())
	f.instance(201, 11, f.values().ID(301).ID(301).Bytes())
	f.instance(300, 12, nil)
	f.instance(301, 12, nil)
	f.root(NewRoot(200, 0, RootUnknown, "", nil))
	f.root(NewRoot(201, 0, RootUnknown, "", nil))
	return f
}

func TestSnapshot_WeakReferences(t *testing.T) {
	s := weakFixture().build(t)
	s.Resolve(true)

	require.NotNil(t, s.WeakReferenceClass())
	assert.Equal(t, 0, s.ReferentFieldIndex())

	weak := s.FindThing(200)
	target := s.FindThing(300)
	assert.True(t, weak.RefersOnlyWeaklyTo(target))
	assert.False(t, s.FindThing(201).RefersOnlyWeaklyTo(s.FindThing(301)), "queue holds it strongly")
	assert.False(t, s.FindThing(300).RefersOnlyWeaklyTo(weak))

	assert.Empty(t, s.RootsetReferencesTo(target, false))
	chains := s.RootsetReferencesTo(target, true)
	require.Len(t, chains, 1)
	assert.Equal(t, 2, chains[0].Depth())
	assert.Same(t, weak, chains[0].Obj())

	assert.Len(t, s.RootsetReferencesTo(s.FindThing(301), false), 1)
}

func TestSnapshot_MarkNewRelativeTo(t *testing.T) {
	base := newFixture(4)
	base.class(1, 0, "A")
	base.class(2, 0, "B")
	base.instance(100, 1, nil)
	base.instance(102, 2, nil)
	baseline := base.build(t)
	baseline.Resolve(false)

	cur := newFixture(4)
	cur.class(1, 0, "A")
	cur.class(2, 0, "B")
	cur.instance(100, 1, nil)
	cur.instance(101, 1, nil)
	cur.instance(102, 1, nil)
	current := cur.build(t)
	current.Resolve(false)

	assert.False(t, current.HasNewSet())
	assert.False(t, current.FindThing(101).IsNew())

	current.MarkNewRelativeTo(baseline)
	assert.True(t, current.HasNewSet())
	assert.False(t, current.FindThing(100).IsNew())
	assert.True(t, current.FindThing(101).IsNew())
	assert.True(t, current.FindThing(102).IsNew(), "same id, different class")
	assert.False(t, current.FindClass("A").IsNew())
}

func TestSnapshot_SiteTraces(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.instance(100, 1, nil)
	f.instance(101, 1, nil)
	s := f.build(t)

	trace := NewStackTrace([]*StackFrame{
		{MethodName: "alloc", ClassName: "java.lang.Object", Line: 12},
		{MethodName: "main", ClassName: "Missing", Line: NativeMethod},
	})
	s.SetSiteTrace(s.FindThing(100), trace)
	s.SetSiteTrace(s.FindThing(101), NewStackTrace(nil))
	s.Resolve(false)

	assert.Same(t, trace, s.FindThing(100).SiteTrace())
	assert.Nil(t, s.FindThing(101).SiteTrace(), "empty traces are dropped")
	frames := trace.Frames()
	assert.Same(t, s.FindClass("java.lang.Object"), frames[0].Class())
	assert.Nil(t, frames[1].Class())
	assert.Equal(t, "12", frames[0].LineNumber())
	assert.Equal(t, "(native method)", frames[1].LineNumber())

	assert.Len(t, trace.TraceForDepth(1).Frames(), 1)
	assert.Same(t, trace, trace.TraceForDepth(5))
}

func TestStackFrame_LineNumber(t *testing.T) {
	assert.Equal(t, "(unknown)", (&StackFrame{Line: LineNumberUnknown}).LineNumber())
	assert.Equal(t, "(compiled method)", (&StackFrame{Line: CompiledMethod}).LineNumber())
	assert.Equal(t, "0", (&StackFrame{}).LineNumber())
}

func TestSnapshot_FinalizerObjects(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.classInfo(ClassInfo{
		ID: 20, SuperID: 1, Name: "java.lang.ref.Finalizer",
		Fields:  []*JavaField{ref("referent"), ref("next")},
		Statics: []*JavaStatic{NewJavaStatic(ref("queue"), NewObjectRef(400))},
	})
	f.class(21, 1, "java.lang.ref.ReferenceQueue", ref("head"))
	f.instance(400, 21, f.values().ID(401).Bytes())
	f.instance(401, 20, f.values().ID(500).ID(402).Bytes())
	f.instance(402, 20, f.values().ID(501).ID(0).Bytes())
	f.instance(500, 1, nil)
	f.instance(501, 1, nil)
	s := f.build(t)
	s.Resolve(false)

	got := s.FinalizerObjects()
	require.Len(t, got, 2)
	assert.Same(t, s.FindThing(500), got[0])
	assert.Same(t, s.FindThing(501), got[1])
}

func TestSnapshot_WellKnownPlaceholders(t *testing.T) {
	rec, opt := newRecorder()
	s := newFixture(4).build(t, opt)
	s.Resolve(true)

	for _, name := range []string{"java.lang.Class", "java.lang.String", "java.lang.ClassLoader"} {
		c := s.FindClass(name)
		require.NotNil(t, c, name)
		assert.Same(t, c, s.FindThing(c.ID()), "placeholder %s is in the id table", name)
		assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Class "+name+" not found"))
	}
	assert.Same(t, s.FindClass("java.lang.String"), s.JavaLangString())
	assert.Same(t, s.FindClass("java.lang.ClassLoader"), s.JavaLangClassLoader())
	assert.Nil(t, s.WeakReferenceClass())
}

func TestSnapshot_Lifecycle(t *testing.T) {
	s := twoClassFixture().build(t)
	assert.Equal(t, StateUnresolved, s.State())
	assert.Equal(t, 4, s.IdentifierSize())
	assert.Equal(t, int64(8), s.MinimumObjectSize())

	err := s.SetIdentifierSize(2)
	assert.True(t, apperrors.GetErrorCode(err) == apperrors.CodeUnsupportedFormat)

	s.Resolve(false)
	assert.Len(t, s.Instances("Holder", false), 1)
	assert.Nil(t, s.Instances("Nope", false))
	names := []string{}
	for _, c := range s.Classes() {
		names = append(names, c.Name())
	}
	assert.IsIncreasing(t, names)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Close())
}

func TestSnapshot_DuplicateIDsKeepLaterRecord(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0, "A")
	f.class(2, 0, "B")
	f.instance(100, 1, nil)
	f.instance(100, 2, nil)
	s := f.build(t, opt)
	s.Resolve(false)

	assert.Equal(t, "B", s.FindThing(100).Clazz().Name())
	count := 0
	for _, o := range s.Things() {
		if o.ID() == 100 {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Duplicate object id 0x64"))
}

func TestSnapshot_IDMasking(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "A")
	s := f.build(t)
	assert.Same(t, s.FindClass("A"), s.FindThing(0xABCD_0000_0000_0001))
}
