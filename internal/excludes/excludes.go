// Package excludes reads the list of fields that reachability queries
// should not follow.
//
// The file holds one "pkg.Class.field" name per line. Blank lines and lines
// starting with '#' are ignored. The file is read again whenever its
// modification time changes, so it can be edited while a snapshot is open.
package excludes

import (
	"bufio"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/utils"
)

// File is a reloadable set of excluded field names backed by a file.
type File struct {
	fs     afero.Fs
	path   string
	logger utils.Logger

	mu      sync.Mutex
	modTime time.Time
	exists  bool
	fields  map[string]struct{}
}

// NewFile creates an exclusion set for path on fs. Nothing is read until
// the first lookup. A missing file excludes nothing.
func NewFile(fs afero.Fs, path string, logger utils.Logger) *File {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &File{
		fs:     fs,
		path:   path,
		logger: logger,
		fields: make(map[string]struct{}),
	}
}

// NewOsFile creates an exclusion set on the local filesystem.
func NewOsFile(path string, logger utils.Logger) *File {
	return NewFile(afero.NewOsFs(), path, logger)
}

// IsExcluded reports whether fieldName is listed.
func (f *File) IsExcluded(fieldName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh()
	_, ok := f.fields[fieldName]
	return ok
}

// Fields returns the listed names in order.
func (f *File) Fields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh()
	out := make([]string, 0, len(f.fields))
	for name := range f.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reload rereads the file regardless of its modification time.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.fs.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.clear()
			return nil
		}
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to stat excludes file", err)
	}
	return f.load(info.ModTime())
}

// refresh reloads when the file appeared, vanished or changed. Errors keep
// the previous contents.
func (f *File) refresh() {
	info, err := f.fs.Stat(f.path)
	if err != nil {
		if f.exists {
			f.logger.Info("Excludes file %s is gone, nothing is excluded", f.path)
			f.clear()
		}
		return
	}
	if f.exists && info.ModTime().Equal(f.modTime) {
		return
	}
	if err := f.load(info.ModTime()); err != nil {
		f.logger.Warn("Failed to read excludes file %s: %v", f.path, err)
	}
}

func (f *File) load(modTime time.Time) error {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to open excludes file", err)
	}
	defer file.Close()

	fields := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to read excludes file", err)
	}

	f.fields = fields
	f.modTime = modTime
	f.exists = true
	f.logger.Debug("Loaded %d excluded fields from %s", len(fields), f.path)
	return nil
}

func (f *File) clear() {
	f.fields = make(map[string]struct{})
	f.modTime = time.Time{}
	f.exists = false
}
