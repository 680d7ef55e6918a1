package model

// RootType is the kind of a GC root. Higher values are more interesting.
type RootType int

const (
	RootInvalid RootType = iota
	RootUnknown
	RootSystemClass
	RootNativeLocal
	RootNativeStatic
	RootThreadBlock
	RootBusyMonitor
	RootJavaLocal
	RootNativeStack
	RootJavaStatic
)

var rootTypeNames = [...]string{
	RootInvalid:      "Invalid (?!?)",
	RootUnknown:      "Unknown",
	RootSystemClass:  "System Class",
	RootNativeLocal:  "JNI Local",
	RootNativeStatic: "JNI Global",
	RootThreadBlock:  "Thread Block",
	RootBusyMonitor:  "Busy Monitor",
	RootJavaLocal:    "Java Local",
	RootNativeStack:  "Native Stack (possibly Java local)",
	RootJavaStatic:   "Java Static",
}

// String returns the display name of the root type.
func (t RootType) String() string {
	if t < 0 || int(t) >= len(rootTypeNames) {
		return rootTypeNames[RootInvalid]
	}
	return rootTypeNames[t]
}

// Root is a reference that keeps an object alive from outside the heap.
type Root struct {
	id          ID
	referrerID  ID
	rootType    RootType
	description string
	stackTrace  *StackTrace

	referrer JavaHeapObject
	index    int
}

// NewRoot creates a root targeting id. referrerID names the thread or class
// responsible, 0 if none.
func NewRoot(id, referrerID ID, rootType RootType, description string, trace *StackTrace) *Root {
	return &Root{
		id:          id,
		referrerID:  referrerID,
		rootType:    rootType,
		description: description,
		stackTrace:  trace,
		index:       -1,
	}
}

// ID returns the target object id.
func (r *Root) ID() ID { return r.id }

// ReferrerID returns the id of the responsible thread or class.
func (r *Root) ReferrerID() ID { return r.referrerID }

// Type returns the root type.
func (r *Root) Type() RootType { return r.rootType }

// TypeName returns the display name of the root type.
func (r *Root) TypeName() string { return r.rootType.String() }

// Description falls back to "<type> Reference" when none was recorded.
func (r *Root) Description() string {
	if r.description == "" {
		return r.TypeName() + " Reference"
	}
	return r.description
}

// Referrer is the resolved responsible object, or nil.
func (r *Root) Referrer() JavaHeapObject { return r.referrer }

// StackTrace returns the trace recorded with the root, or nil.
func (r *Root) StackTrace() *StackTrace { return r.stackTrace }

// Index is the position in the snapshot's root list, -1 before insertion.
func (r *Root) Index() int { return r.index }

// MostInteresting returns whichever of r and other has the higher type.
func (r *Root) MostInteresting(other *Root) *Root {
	if other != nil && other.rootType > r.rootType {
		return other
	}
	return r
}

func (r *Root) resolve(s *Snapshot) {
	if r.referrerID != 0 && r.referrer == nil {
		r.referrer = s.FindThing(r.referrerID)
	}
	if r.stackTrace != nil {
		r.stackTrace.resolve(s)
	}
}
