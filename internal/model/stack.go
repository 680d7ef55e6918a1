package model

import "strconv"

// Special line numbers of a stack frame.
const (
	LineNumberUnknown = -1
	CompiledMethod    = -2
	NativeMethod      = -3
)

// StackFrame is one call frame.
type StackFrame struct {
	MethodName      string
	MethodSignature string
	ClassName       string
	SourceFileName  string
	Line            int

	clazz *JavaClass
}

// LineNumber renders the line, or a marker for the special values.
func (f *StackFrame) LineNumber() string {
	switch f.Line {
	case LineNumberUnknown:
		return "(unknown)"
	case CompiledMethod:
		return "(compiled method)"
	case NativeMethod:
		return "(native method)"
	}
	return strconv.Itoa(f.Line)
}

// Class returns the frame's class once its trace is resolved, or nil when
// the dump has no such class.
func (f *StackFrame) Class() *JavaClass { return f.clazz }

// StackTrace is an ordered list of frames, innermost first.
type StackTrace struct {
	frames   []*StackFrame
	resolved bool
}

// NewStackTrace creates a trace over frames.
func NewStackTrace(frames []*StackFrame) *StackTrace {
	return &StackTrace{frames: frames}
}

// Frames returns the frames.
func (t *StackTrace) Frames() []*StackFrame { return t.frames }

// TraceForDepth returns a trace holding at most depth frames.
func (t *StackTrace) TraceForDepth(depth int) *StackTrace {
	if depth >= len(t.frames) {
		return t
	}
	depth = max(depth, 0)
	frames := make([]*StackFrame, depth)
	copy(frames, t.frames[:depth])
	return NewStackTrace(frames)
}

func (t *StackTrace) resolve(s *Snapshot) {
	if t.resolved {
		return
	}
	t.resolved = true
	for _, f := range t.frames {
		f.clazz = s.FindClass(f.ClassName)
	}
}
