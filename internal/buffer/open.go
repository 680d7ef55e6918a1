package buffer

import (
	"os"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// Kind selects a ReadBuffer implementation.
type Kind string

const (
	KindMmap   Kind = "mmap"
	KindFile   Kind = "file"
	KindMemory Kind = "memory"
)

// Open opens path with the requested implementation.
func Open(path string, kind Kind) (ReadBuffer, error) {
	switch kind {
	case KindMmap, "":
		return OpenMmap(path)
	case KindFile:
		return OpenFile(path)
	case KindMemory:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "failed to read heap dump", err)
		}
		return NewBytes(data), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown buffer kind %q", kind)
	}
}
