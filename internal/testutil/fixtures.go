// Package testutil builds heap dump fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteDump writes data to name inside a per-test temp dir and returns the
// path.
func WriteDump(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write dump %s: %v", name, err)
	}
	return path
}

// WriteFile writes content to a file in dir.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
