package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-snapshot/internal/buffer"
	"github.com/heap-snapshot/internal/testutil"
	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/utils"
)

// fixture queues construction calls and lays instance and array records
// out in a byte buffer, the way a loader would.
type fixture struct {
	w   *testutil.Writer
	ops []func(*Snapshot)
}

func newFixture(idSize int) *fixture {
	return &fixture{w: testutil.NewWriter(idSize)}
}

func (f *fixture) values() *testutil.Values {
	return testutil.NewValues(f.w.IDSize())
}

func (f *fixture) class(id, superID uint64, name string, fields ...*JavaField) *fixture {
	return f.classInfo(ClassInfo{ID: ID(id), SuperID: ID(superID), Name: name, Fields: fields, InstanceSize: instanceBytes(fields, f.w.IDSize())})
}

func (f *fixture) classInfo(info ClassInfo) *fixture {
	f.ops = append(f.ops, func(s *Snapshot) { s.AddClass(NewJavaClass(info)) })
	return f
}

func (f *fixture) instance(id, classID uint64, data []byte) *fixture {
	off := f.w.InstanceDump(id, 0, classID, data)
	f.ops = append(f.ops, func(s *Snapshot) { s.AddInstance(ID(id), ID(classID), off) })
	return f
}

func (f *fixture) objArray(id, classID uint64, elements ...uint64) *fixture {
	off := f.w.ObjectArrayDump(id, 0, classID, elements)
	f.ops = append(f.ops, func(s *Snapshot) { s.AddObjectArray(ID(id), ID(classID), off) })
	return f
}

func (f *fixture) valArray(id uint64, elemType byte, count uint32, data []byte) *fixture {
	off := f.w.PrimitiveArrayDump(id, 0, elemType, count, data)
	f.ops = append(f.ops, func(s *Snapshot) { s.AddValueArray(ID(id), off) })
	return f
}

func (f *fixture) root(r *Root) *fixture {
	f.ops = append(f.ops, func(s *Snapshot) { s.AddRoot(r) })
	return f
}

func (f *fixture) build(t *testing.T, opts ...Option) *Snapshot {
	t.Helper()
	return f.buildWith(t, buffer.NewBytes(f.w.Bytes()), opts...)
}

func (f *fixture) buildWith(t *testing.T, buf buffer.ReadBuffer, opts ...Option) *Snapshot {
	t.Helper()
	s := NewSnapshot(buf, opts...)
	require.NoError(t, s.SetIdentifierSize(f.w.IDSize()))
	for _, op := range f.ops {
		op(s)
	}
	return s
}

func instanceBytes(fields []*JavaField, idSize int) int {
	n := 0
	for _, fld := range fields {
		n += SignatureWidth(fld.sig(), idSize)
	}
	return n
}

func ref(name string) *JavaField {
	return NewJavaField(name, "Ljava.lang.Object;")
}

func assertMisusePanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		assert.True(t, apperrors.IsMisuse(err))
	}()
	fn()
}

func newRecorder() (*utils.RecordingLogger, Option) {
	rec := utils.NewRecordingLogger()
	return rec, WithLogger(rec)
}

// countingBuffer counts payload reads.
type countingBuffer struct {
	buffer.ReadBuffer
	gets int
}

func (c *countingBuffer) Get(pos int64, p []byte) error {
	c.gets++
	return c.ReadBuffer.Get(pos, p)
}

type excludeSet map[string]bool

func (e excludeSet) IsExcluded(name string) bool { return e[name] }

func bufferOf(data []byte) buffer.ReadBuffer {
	return buffer.NewBytes(data)
}
