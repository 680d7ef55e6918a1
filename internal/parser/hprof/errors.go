package hprof

import (
	apperrors "github.com/heap-snapshot/pkg/errors"
)

var (
	// ErrUnsupportedFormat is returned when the header names an unknown
	// format revision.
	ErrUnsupportedFormat = apperrors.New(apperrors.CodeUnsupportedFormat, "unsupported hprof format")

	// ErrInvalidIDSize is returned when the header declares an identifier
	// size other than 4 or 8.
	ErrInvalidIDSize = apperrors.New(apperrors.CodeUnsupportedFormat, "invalid identifier size")

	// ErrTruncated is returned when a record extends past the end of the file.
	ErrTruncated = apperrors.New(apperrors.CodeCorruptRecord, "truncated record")

	// ErrSegmentOverrun is returned when a sub-record extends past the end of
	// its heap dump segment.
	ErrSegmentOverrun = apperrors.New(apperrors.CodeCorruptRecord, "sub-record overruns its segment")
)

func corruptf(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.CodeCorruptRecord, format, args...)
}
