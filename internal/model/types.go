package model

import "fmt"

// ID identifies a heap entity. Values are masked to the snapshot's
// identifier size; 0 is the null reference.
type ID uint64

// Hex renders the id as 0x-prefixed hex.
func (id ID) Hex() string {
	return fmt.Sprintf("0x%x", uint64(id))
}

// Kind tags the four heap entity variants.
type Kind int

const (
	KindClass Kind = iota
	KindObject
	KindObjectArray
	KindValueArray
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindObject:
		return "object"
	case KindObjectArray:
		return "object array"
	case KindValueArray:
		return "value array"
	default:
		return "unknown"
	}
}

// BasicType is the hprof encoding of a primitive or object type.
type BasicType byte

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

var basicTypeSignatures = map[BasicType]byte{
	TypeObject:  'L',
	TypeBoolean: 'Z',
	TypeChar:    'C',
	TypeFloat:   'F',
	TypeDouble:  'D',
	TypeByte:    'B',
	TypeShort:   'S',
	TypeInt:     'I',
	TypeLong:    'J',
}

// Signature returns the one-character type signature, or 0 if t is unknown.
func (t BasicType) Signature() byte {
	return basicTypeSignatures[t]
}

// SignatureWidth returns the encoded width of a value with the given
// signature character. Object references take idSize bytes.
func SignatureWidth(sig byte, idSize int) int {
	switch sig {
	case 'L', '[':
		return idSize
	case 'Z', 'B':
		return 1
	case 'S', 'C':
		return 2
	case 'I', 'F':
		return 4
	case 'J', 'D':
		return 8
	default:
		return 0
	}
}
