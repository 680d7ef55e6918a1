package buffer

import (
	"os"
	"syscall"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// Mmap is a read-only memory-mapped ReadBuffer. Paging is left to the OS,
// which keeps multi-gigabyte dumps out of the Go heap.
type Mmap struct {
	sliceReader
	data []byte
}

// OpenMmap maps path read-only. Empty files map to an empty buffer.
func OpenMmap(path string) (*Mmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "failed to open heap dump", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to stat heap dump", err)
	}

	m := &Mmap{}
	m.sliceReader = sliceReader{window: m.window}
	if info.Size() == 0 {
		return m, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to mmap heap dump", err)
	}
	m.data = data
	return m, nil
}

func (m *Mmap) window(pos int64, n int) ([]byte, error) {
	if err := checkRange(pos, n, int64(len(m.data))); err != nil {
		return nil, err
	}
	return m.data[pos : pos+int64(n)], nil
}

// Size returns the mapped length.
func (m *Mmap) Size() int64 {
	return int64(len(m.data))
}

// Close unmaps the file.
func (m *Mmap) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := syscall.Munmap(data); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to unmap heap dump", err)
	}
	return nil
}
