package model

// JavaField describes a field: its name and type signature.
type JavaField struct {
	name      string
	signature string
}

// NewJavaField creates a field descriptor.
func NewJavaField(name, signature string) *JavaField {
	return &JavaField{name: name, signature: signature}
}

// Name returns the field name.
func (f *JavaField) Name() string { return f.name }

// Signature returns the type signature, e.g. "I" or "Ljava.lang.String;".
func (f *JavaField) Signature() string { return f.signature }

// HasID reports whether the field holds an object reference.
func (f *JavaField) HasID() bool {
	if f.signature == "" {
		return false
	}
	c := f.signature[0]
	return c == 'L' || c == '['
}

func (f *JavaField) sig() byte {
	if f.signature == "" {
		return 0
	}
	return f.signature[0]
}
