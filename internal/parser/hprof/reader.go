package hprof

import (
	"errors"
	"fmt"
	"time"

	"github.com/heap-snapshot/internal/buffer"
)

// maxFormatLength bounds the header's null-terminated format string.
const maxFormatLength = 64

// Reader walks an HPROF file front to back. It keeps an absolute position so
// heap objects can later be decoded straight from the buffer at the offsets
// the reader handed out.
type Reader struct {
	buf    buffer.ReadBuffer
	pos    int64
	idSize int
}

// NewReader creates a new HPROF reader positioned at the start of buf.
func NewReader(buf buffer.ReadBuffer) *Reader {
	return &Reader{
		buf:    buf,
		idSize: 8, // Default to 8, will be set from header
	}
}

// SetIDSize sets the identifier size (4 or 8 bytes).
func (r *Reader) SetIDSize(size int) {
	r.idSize = size
}

// IDSize returns the current identifier size.
func (r *Reader) IDSize() int {
	return r.idSize
}

// Pos returns the absolute offset of the next read.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int64 {
	return r.buf.Size() - r.pos
}

// EOF reports whether every byte has been read.
func (r *Reader) EOF() bool {
	return r.pos >= r.buf.Size()
}

// ReadHeader reads the HPROF file header.
func (r *Reader) ReadHeader() (*Header, error) {
	format, err := r.readNullTerminatedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read format string: %w", err)
	}
	version, ok := versionsByFormat[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	idSize, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read ID size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIDSize, idSize)
	}
	r.idSize = int(idSize)

	// Milliseconds since epoch.
	timestamp, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}

	return &Header{
		Format:    format,
		Version:   version,
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(timestamp)),
	}, nil
}

// ReadRecordHeader reads a record header (tag, time delta, length).
func (r *Reader) ReadRecordHeader() (tag RecordTag, timeDelta uint32, length uint32, err error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return 0, 0, 0, err
	}
	tag = RecordTag(tagByte)

	timeDelta, err = r.ReadUint32()
	if err != nil {
		return 0, 0, 0, err
	}

	length, err = r.ReadUint32()
	if err != nil {
		return 0, 0, 0, err
	}

	return tag, timeDelta, length, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.buf.GetByte(r.pos)
	if err != nil {
		return 0, r.truncated(err)
	}
	r.pos++
	return v, nil
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || int64(n) > r.Remaining() {
		return nil, r.truncated(buffer.ErrOutOfRange)
	}
	p := make([]byte, n)
	if err := r.buf.Get(r.pos, p); err != nil {
		return nil, r.truncated(err)
	}
	r.pos += int64(n)
	return p, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.buf.GetChar(r.pos)
	if err != nil {
		return 0, r.truncated(err)
	}
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.buf.GetInt(r.pos)
	if err != nil {
		return 0, r.truncated(err)
	}
	r.pos += 4
	return uint32(v), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	v, err := r.buf.GetLong(r.pos)
	if err != nil {
		return 0, r.truncated(err)
	}
	r.pos += 8
	return uint64(v), nil
}

// ReadID reads an identifier (size depends on header).
func (r *Reader) ReadID() (uint64, error) {
	v, err := buffer.GetID(r.buf, r.pos, r.idSize)
	if err != nil {
		return 0, r.truncated(err)
	}
	r.pos += int64(r.idSize)
	return v, nil
}

// Skip skips n bytes.
func (r *Reader) Skip(n int64) error {
	if n < 0 || n > r.Remaining() {
		return r.truncated(buffer.ErrOutOfRange)
	}
	r.pos += n
	return nil
}

// readNullTerminatedString reads a null-terminated string.
func (r *Reader) readNullTerminatedString() (string, error) {
	var result []byte
	for len(result) < maxFormatLength {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(result), nil
		}
		result = append(result, b)
	}
	return "", fmt.Errorf("%w: no terminator in the first %d bytes", ErrUnsupportedFormat, maxFormatLength)
}

func (r *Reader) truncated(err error) error {
	if errors.Is(err, ErrTruncated) {
		return err
	}
	return fmt.Errorf("%w at offset %d: %v", ErrTruncated, r.pos, err)
}
