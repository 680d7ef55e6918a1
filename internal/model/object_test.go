package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-snapshot/internal/testutil"
	"github.com/heap-snapshot/pkg/utils"
)

func TestJavaObject_FakeClassCoversDeclaredLength(t *testing.T) {
	tests := []struct {
		length    int
		wantInts  int
		wantBytes int
	}{
		{10, 2, 2},
		{8, 2, 0},
		{3, 0, 3},
		{0, 0, 0},
	}
	for _, tt := range tests {
		rec, opt := newRecorder()
		f := newFixture(4)
		f.instance(100, 0x4d, make([]byte, tt.length))
		s := f.build(t, opt)
		s.Resolve(false)

		obj := s.FindThing(100).(*JavaObject)
		c := obj.Clazz()
		require.NotNil(t, c)
		assert.Equal(t, "unknown-class<@0x4d>", c.Name())
		assert.Equal(t, ID(0x4d), c.ID())

		ints, bytes, width := 0, 0, 0
		for _, fld := range c.Fields() {
			switch fld.Signature() {
			case "I":
				ints++
			case "B":
				bytes++
			}
			width += SignatureWidth(fld.sig(), 4)
		}
		assert.Equal(t, tt.wantInts, ints)
		assert.Equal(t, tt.wantBytes, bytes)
		assert.Equal(t, tt.length, width)
		assert.Len(t, obj.Fields(), tt.wantInts+tt.wantBytes)
		assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Class 0x4d not found"))
	}
}

func TestJavaObject_FakeClassSharedByInstances(t *testing.T) {
	f := newFixture(4)
	f.instance(100, 0x4d, make([]byte, 4))
	f.instance(101, 0x4d, make([]byte, 4))
	s := f.build(t)
	s.Resolve(false)

	a := s.FindThing(100).Clazz()
	assert.Same(t, a, s.FindThing(101).Clazz())
	assert.Equal(t, 2, a.InstancesCount(false))
	assert.Same(t, a, s.FindThing(0x4d), "merged into the id table")
}

func TestJavaObject_UnresolvedReference(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "Holder", ref("gone"))
	f.instance(100, 1, f.values().ID(0x99).Bytes())

	t.Run("warns once while resolving", func(t *testing.T) {
		rec, opt := newRecorder()
		s := f.build(t, opt)
		s.Resolve(false)

		v := s.FindThing(100).(*JavaObject).Field("gone")
		require.IsType(t, &HackJavaValue{}, v)
		assert.Equal(t, "Unresolved object 0x99", v.String())
		assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Failed to resolve object id 0x99 for field gone"))
	})

	t.Run("silent when unresolved objects are ok", func(t *testing.T) {
		rec, opt := newRecorder()
		s := f.build(t, opt)
		s.SetUnresolvedObjectsOK(true)
		s.Resolve(false)

		assert.Equal(t, 0, rec.Count(utils.LevelWarn, "Failed to resolve"))
	})
}

func TestJavaObject_DecodeFailureIsAllOrNothing(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0, "Pair", NewJavaField("a", "I"), NewJavaField("b", "I"))
	f.instance(100, 1, f.values().Int(1).Bytes())
	s := f.build(t, opt)
	s.Resolve(false)

	obj := s.FindThing(100).(*JavaObject)
	assert.Empty(t, obj.Fields())
	assert.Equal(t, int64(4+8), obj.Size())
	assert.GreaterOrEqual(t, rec.Count(utils.LevelError, "offset"), 1)
}

func TestJavaObject_TruncatedBuffer(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(4)
	f.class(1, 0, "Pair", NewJavaField("a", "I"))
	f.instance(100, 1, f.values().Int(1).Bytes())
	data := f.w.Bytes()
	s := f.buildWith(t, bufferOf(data[:len(data)-2]), opt)
	s.Resolve(false)

	obj := s.FindThing(100).(*JavaObject)
	assert.Empty(t, obj.Fields())
	assert.GreaterOrEqual(t, rec.Count(utils.LevelError, "Failed to read fields"), 1)
}

func TestJavaObject_DescribeReferenceTo(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(2, 1, "Holder", ref("left"), ref("right"))
	f.instance(100, 2, f.values().ID(102).ID(101).Bytes())
	f.instance(101, 1, nil)
	f.instance(102, 1, nil)
	s := f.build(t)
	s.Resolve(false)

	holder := s.FindThing(100)
	assert.Equal(t, "field right", holder.DescribeReferenceTo(s.FindThing(101)))
	assert.Equal(t, "field left", holder.DescribeReferenceTo(s.FindThing(102)))
	assert.Equal(t, "??", holder.DescribeReferenceTo(holder))
	assert.Equal(t, "Holder@0x64", holder.String())
}

func TestJavaObject_StringRendering(t *testing.T) {
	t.Run("char array", func(t *testing.T) {
		f := newFixture(4)
		f.class(3, 0, "java.lang.String", NewJavaField("value", "[C"))
		f.instance(600, 3, f.values().ID(601).Bytes())
		f.valArray(601, testutil.TypeChar, 5, f.values().Chars("hello").Bytes())
		f.instance(602, 3, f.values().ID(0).Bytes())
		s := f.build(t)
		s.Resolve(false)

		assert.True(t, s.FindClass("java.lang.String").IsString())
		assert.Equal(t, "hello", s.FindThing(600).String())
		assert.Equal(t, "null", s.FindThing(602).String())
	})

	t.Run("compact latin1", func(t *testing.T) {
		f := newFixture(8)
		f.class(3, 0, "java.lang.String", NewJavaField("value", "[B"), NewJavaField("coder", "B"))
		f.instance(600, 3, f.values().ID(601).Byte(0).Bytes())
		f.valArray(601, testutil.TypeByte, 3, []byte("abc"))
		s := f.build(t)
		s.Resolve(false)

		assert.Equal(t, "abc", s.FindThing(600).String())
	})

	t.Run("compact utf16", func(t *testing.T) {
		f := newFixture(8)
		f.class(3, 0, "java.lang.String", NewJavaField("value", "[B"), NewJavaField("coder", "B"))
		f.instance(600, 3, f.values().ID(601).Byte(1).Bytes())
		f.valArray(601, testutil.TypeByte, 4, f.values().Chars("hé").Bytes())
		s := f.build(t)
		s.Resolve(false)

		assert.Equal(t, "hé", s.FindThing(600).String())
	})
}

func TestJavaObject_PrimitiveFieldDecoding(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "Prims",
		NewJavaField("z", "Z"), NewJavaField("b", "B"), NewJavaField("c", "C"), NewJavaField("s", "S"),
		NewJavaField("i", "I"), NewJavaField("j", "J"), NewJavaField("f", "F"), NewJavaField("d", "D"))
	data := f.values().Bool(true).Byte(-1).Char('x').Short(-2).Int(3).Long(-4).Float(1.5).Double(2.25).Bytes()
	f.instance(100, 1, data)
	s := f.build(t)
	s.Resolve(false)

	got := s.FindThing(100).(*JavaObject).Fields()
	var rendered []string
	for _, v := range got {
		rendered = append(rendered, v.String())
		assert.False(t, v.IsHeapAllocated())
		assert.Equal(t, int64(0), v.Size())
	}
	assert.Equal(t, []string{"true", "0xff", "x", "-2", "3", "-4", "1.5", "2.25"}, rendered)
}
