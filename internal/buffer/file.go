package buffer

import (
	"fmt"
	"os"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// File is a ReadBuffer that issues positioned reads against an open file.
// os.File.ReadAt is safe for concurrent use, so File needs no lock.
type File struct {
	sliceReader
	f    *os.File
	size int64
}

// OpenFile opens path for positioned reads.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "failed to open heap dump", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to stat heap dump", err)
	}
	fb := &File{f: f, size: info.Size()}
	fb.sliceReader = sliceReader{window: fb.window}
	return fb, nil
}

func (b *File) window(pos int64, n int) ([]byte, error) {
	if err := checkRange(pos, n, b.size); err != nil {
		return nil, err
	}
	p := make([]byte, n)
	if _, err := b.f.ReadAt(p, pos); err != nil {
		return nil, fmt.Errorf("read at %d: %w", pos, err)
	}
	return p, nil
}

// Size returns the file size at open time.
func (b *File) Size() int64 {
	return b.size
}

// Close closes the file.
func (b *File) Close() error {
	return b.f.Close()
}
