// Package writer writes summaries and query results as JSON, optionally
// compressed.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/heap-snapshot/pkg/compression"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
	// Level is used when a file name asks for compression.
	Level compression.Level
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Level: compression.LevelDefault}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  ", Level: compression.LevelDefault}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// WriteResult contains statistics about the written file.
type WriteResult struct {
	Compression    compression.Type
	JSONSize       int64
	FileSize       int64
	CompressionPct float64
}

// WriteToFile writes the data as JSON to path. A .gz or .zst suffix
// compresses the output accordingly.
func (w *JSONWriter[T]) WriteToFile(data T, path string) (*WriteResult, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	t := compression.TypeFromName(path)
	zw, err := compression.NewWriter(file, t, w.Level)
	if err != nil {
		return nil, err
	}

	counter := &countingWriter{w: zw}
	if err := w.Write(data, counter); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", t, err)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	result := &WriteResult{
		Compression: t,
		JSONSize:    counter.n,
		FileSize:    info.Size(),
	}
	if result.JSONSize > 0 {
		result.CompressionPct = float64(result.FileSize) / float64(result.JSONSize) * 100
	}
	return result, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
