// Package compression opens and writes gzip and zstd streams, so heap
// dumps can be kept compressed in storage and exports can be written
// compressed.
package compression

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeGzip uses gzip compression (slower but widely compatible)
	TypeGzip Type = 0
	// TypeZstd uses zstd compression (faster and better compression ratio)
	TypeZstd Type = 1
	// TypeNone is an uncompressed stream
	TypeNone Type = 255
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the file suffix for t, empty for TypeNone.
func (t Type) Extension() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// Level represents the compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio
	LevelFastest Level = 1
	// LevelDefault balances speed and compression ratio
	LevelDefault Level = 3
	// LevelBest prioritizes compression ratio over speed
	LevelBest Level = 9
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectType detects the compression type from magic bytes. Anything
// unrecognized, including a plain hprof header, is TypeNone.
func DetectType(header []byte) Type {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return TypeZstd
	case bytes.HasPrefix(header, gzipMagic):
		return TypeGzip
	default:
		return TypeNone
	}
}

// TypeFromName picks the compression type from a file name suffix.
func TypeFromName(name string) Type {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return TypeGzip
	case ".zst", ".zstd":
		return TypeZstd
	default:
		return TypeNone
	}
}

// TrimExtension strips a compression suffix from name.
func TrimExtension(name string) string {
	if TypeFromName(name) == TypeNone {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// NewReader sniffs the stream and returns a reader of the decompressed
// bytes along with the detected type. Uncompressed input is passed through.
func NewReader(r io.Reader) (io.ReadCloser, Type, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, TypeNone, err
	}

	t := DetectType(header)
	switch t {
	case TypeGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return zr, t, nil
	case TypeZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, t, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return zr.IOReadCloser(), t, nil
	default:
		return io.NopCloser(br), t, nil
	}
}

// NewWriter compresses everything written to w. Closing the returned
// writer flushes it but leaves w open.
func NewWriter(w io.Writer, t Type, level Level) (io.WriteCloser, error) {
	switch t {
	case TypeGzip:
		gzipLevel := gzip.DefaultCompression
		switch level {
		case LevelFastest:
			gzipLevel = gzip.BestSpeed
		case LevelBest:
			gzipLevel = gzip.BestCompression
		}
		return gzip.NewWriterLevel(w, gzipLevel)
	case TypeZstd:
		zstdLevel := zstd.SpeedDefault
		switch level {
		case LevelFastest:
			zstdLevel = zstd.SpeedFastest
		case LevelBest:
			zstdLevel = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	case TypeNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// DecompressFile writes the decompressed contents of src to dst on fs and
// returns the number of bytes written. The output appears under dst only
// once it is complete.
func DecompressFile(ctx context.Context, fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorageError, "failed to open compressed dump", err)
	}
	defer in.Close()

	zr, t, err := NewReader(in)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeParseError, "failed to read compressed dump", err)
	}
	defer zr.Close()

	tmp := dst + ".part"
	out, err := fs.Create(tmp)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorageError, "failed to create decompressed dump", err)
	}

	n, err := io.Copy(out, ctxReader{ctx: ctx, r: zr})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(tmp)
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, apperrors.Wrap(apperrors.CodeParseError, fmt.Sprintf("failed to decompress %s dump", t), err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		fs.Remove(tmp)
		return n, apperrors.Wrap(apperrors.CodeStorageError, "failed to move decompressed dump", err)
	}
	return n, nil
}
