// Package buffer provides random-access, big-endian reads over a heap dump.
//
// A ReadBuffer has no cursor: every read names an absolute byte offset, so
// heap objects can decode their payload long after the loader has moved on.
package buffer

import (
	"encoding/binary"
	"fmt"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// ErrOutOfRange is returned when a read falls outside the buffer.
var ErrOutOfRange = apperrors.New(apperrors.CodeCorruptRecord, "read past end of buffer")

// ReadBuffer reads big-endian primitives at absolute offsets.
type ReadBuffer interface {
	GetByte(pos int64) (byte, error)
	GetChar(pos int64) (uint16, error)
	GetShort(pos int64) (int16, error)
	GetInt(pos int64) (int32, error)
	GetLong(pos int64) (int64, error)
	// Get fills p starting at pos.
	Get(pos int64, p []byte) error
	Size() int64
	Close() error
}

// GetID reads an identifier of idSize bytes (4 or 8) as an unsigned value.
func GetID(b ReadBuffer, pos int64, idSize int) (uint64, error) {
	switch idSize {
	case 4:
		v, err := b.GetInt(pos)
		return uint64(uint32(v)), err
	case 8:
		v, err := b.GetLong(pos)
		return uint64(v), err
	default:
		return 0, apperrors.Newf(apperrors.CodeInvalidInput, "unsupported identifier size %d", idSize)
	}
}

// sliceReader implements the typed getters on top of a single primitive that
// exposes n bytes at pos.
type sliceReader struct {
	window func(pos int64, n int) ([]byte, error)
}

func (s sliceReader) GetByte(pos int64) (byte, error) {
	b, err := s.window(pos, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s sliceReader) GetChar(pos int64) (uint16, error) {
	b, err := s.window(pos, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (s sliceReader) GetShort(pos int64) (int16, error) {
	v, err := s.GetChar(pos)
	return int16(v), err
}

func (s sliceReader) GetInt(pos int64) (int32, error) {
	b, err := s.window(pos, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (s sliceReader) GetLong(pos int64) (int64, error) {
	b, err := s.window(pos, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (s sliceReader) Get(pos int64, p []byte) error {
	b, err := s.window(pos, len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

func checkRange(pos int64, n int, size int64) error {
	if pos < 0 || n < 0 || pos+int64(n) > size {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfRange, pos, n, size)
	}
	return nil
}
