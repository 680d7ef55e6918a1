package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-snapshot/internal/testutil"
	"github.com/heap-snapshot/pkg/utils"
)

func TestJavaValueArray_LengthLaw(t *testing.T) {
	tests := []struct {
		name     string
		elemType byte
		count    uint32
		data     []byte
		width    int
	}{
		{"int", testutil.TypeInt, 3, testutil.NewValues(4).Int(1).Int(2).Int(3).Bytes(), 4},
		{"long", testutil.TypeLong, 2, testutil.NewValues(4).Long(1).Long(2).Bytes(), 8},
		{"char", testutil.TypeChar, 2, testutil.NewValues(4).Chars("ok").Bytes(), 2},
		{"boolean", testutil.TypeBoolean, 1, []byte{1}, 1},
		{"empty", testutil.TypeDouble, 0, nil, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(4)
			f.valArray(100, tt.elemType, tt.count, tt.data)
			s := f.build(t)
			s.Resolve(false)

			arr := s.FindThing(100).(*JavaValueArray)
			assert.Equal(t, int(tt.count), arr.Length())
			assert.Equal(t, int64(arr.Length()*tt.width), arr.ValueLength())
			assert.Len(t, arr.Elements(), arr.Length())
			assert.Equal(t, arr.ValueLength()+8, arr.Size())
		})
	}
}

func TestJavaValueArray_Class(t *testing.T) {
	f := newFixture(4)
	f.valArray(100, testutil.TypeInt, 1, testutil.NewValues(4).Int(1).Bytes())
	f.valArray(101, testutil.TypeInt, 0, nil)
	f.class(7, 0, "[C")
	f.valArray(102, testutil.TypeChar, 0, nil)
	s := f.build(t)
	s.Resolve(false)

	intArray := s.FindThing(100).Clazz()
	require.NotNil(t, intArray)
	assert.Equal(t, "[I", intArray.Name())
	assert.True(t, intArray.IsArray())
	assert.Same(t, intArray, s.FindThing(101).Clazz())
	assert.Same(t, intArray, s.FindClass("[I"))
	assert.Equal(t, ID(7), s.FindThing(102).Clazz().ID())
	assert.NotNil(t, s.FindThing(intArray.ID()), "fabricated classes join the id table")
}

func TestJavaValueArray_ValueString(t *testing.T) {
	var nine []byte
	for i := 1; i <= 9; i++ {
		nine = append(nine, byte(i))
	}
	f := newFixture(4)
	f.valArray(100, testutil.TypeChar, 5, testutil.NewValues(4).Chars("héllo").Bytes())
	f.valArray(101, testutil.TypeInt, 3, testutil.NewValues(4).Int(1).Int(-2).Int(3).Bytes())
	f.valArray(102, testutil.TypeByte, 9, nine)
	f.valArray(103, testutil.TypeBoolean, 2, []byte{1, 0})
	f.valArray(104, testutil.TypeDouble, 1, testutil.NewValues(4).Double(0.5).Bytes())
	s := f.build(t)
	s.Resolve(false)

	str := func(id ID, big bool) string { return s.FindThing(id).(*JavaValueArray).ValueString(big) }
	assert.Equal(t, "héllo", str(100, false))
	assert.Equal(t, "{1, -2, 3}", str(101, false))
	assert.Equal(t, "{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8, ... }", str(102, false))
	assert.Equal(t, "{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8, 0x9}", str(102, true))
	assert.Equal(t, "{true, false}", str(103, false))
	assert.Equal(t, "{0.5}", str(104, false))
}

func TestJavaValueArray_ValueStringSurrogates(t *testing.T) {
	tests := []struct {
		name  string
		units []uint16
		want  string
	}{
		{"pair", []uint16{0xD83D, 0xDE00}, "\U0001F600"},
		{"lone high", []uint16{0xD800}, `\uD800`},
		{"lone low", []uint16{'a', 0xDC00, 'b'}, `a\uDC00b`},
		{"high before text", []uint16{0xD83D, 'x'}, `\uD83Dx`},
		{"reversed pair", []uint16{0xDE00, 0xD83D}, `\uDE00\uD83D`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testutil.NewValues(4)
			for _, u := range tt.units {
				v.Char(u)
			}
			f := newFixture(4)
			f.valArray(100, testutil.TypeChar, uint32(len(tt.units)), v.Bytes())
			s := f.build(t)
			s.Resolve(false)

			assert.Equal(t, tt.want, s.FindThing(100).(*JavaValueArray).ValueString(false))
		})
	}
}

func TestJavaObjectArray_NewStyleClass(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(5, 1, "[Ljava.lang.Object;")
	f.instance(200, 1, nil)
	f.objArray(100, 5, 200, 0, 0x999)
	s := f.build(t)
	s.SetNewStyleArrayClass(true)
	s.Resolve(false)

	arr := s.FindThing(100).(*JavaObjectArray)
	assert.Equal(t, "[Ljava.lang.Object;", arr.Clazz().Name())
	assert.Equal(t, 3, arr.Length())
	assert.Equal(t, int64(12), arr.ValueLength())

	elems := arr.Elements()
	require.Len(t, elems, 3)
	assert.Same(t, s.FindThing(200), elems[0])
	assert.Nil(t, elems[1])
	assert.Nil(t, elems[2], "unknown ids become nil")
	assert.Equal(t, "Element 0 of [Ljava.lang.Object;@0x64", arr.DescribeReferenceTo(s.FindThing(200)))
}

func TestJavaObjectArray_ElementClassFallback(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(2, 1, "java.lang.String")
	f.class(3, 1, "[I")
	f.objArray(100, 2)
	f.objArray(101, 2)
	f.objArray(102, 3)
	s := f.build(t)
	s.Resolve(false)

	strArray := s.FindThing(100).Clazz()
	assert.Equal(t, "[Ljava.lang.String;", strArray.Name())
	assert.Same(t, strArray, s.FindThing(101).Clazz())
	assert.Equal(t, "[[I", s.FindThing(102).Clazz().Name())
}

func TestJavaObjectArray_OtherArrayType(t *testing.T) {
	rec, opt := newRecorder()
	f := newFixture(8)
	f.objArray(100, 0x77)
	f.objArray(101, 0x78)
	s := f.build(t, opt)
	s.SetNewStyleArrayClass(true)
	s.Resolve(false)

	other := s.OtherArrayType()
	assert.Equal(t, "[<other>", other.Name())
	assert.Same(t, other, s.FindThing(100).Clazz())
	assert.Same(t, other, s.FindThing(101).Clazz())
	assert.Equal(t, 2, other.InstancesCount(false))
	assert.Equal(t, 1, rec.Count(utils.LevelWarn, "Array class 0x77 not found"))
}

func TestJavaObjectArray_FakeIDsAvoidCollisions(t *testing.T) {
	f := newFixture(4)
	f.class(0xFFFFFFFF, 0, "Top")
	f.valArray(100, testutil.TypeInt, 0, nil)
	s := f.build(t)
	s.Resolve(false)

	intArray := s.FindClass("[I")
	assert.NotEqual(t, ID(0xFFFFFFFF), intArray.ID())
	assert.Equal(t, "Top", s.FindClass("0xffffffff").Name())
}
