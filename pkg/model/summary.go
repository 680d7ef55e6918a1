// Package model defines the summary data shared by the service, the
// repository and the CLI.
package model

import (
	"sort"
	"time"
)

// SnapshotSummary describes one loaded heap dump.
type SnapshotSummary struct {
	Key       string    `json:"key"`
	Format    string    `json:"format"`
	IDSize    int       `json:"id_size"`
	DumpedAt  time.Time `json:"dumped_at"`
	CreatedAt time.Time `json:"created_at"`

	Classes    int   `json:"classes"`
	Objects    int   `json:"objects"`
	Roots      int   `json:"roots"`
	TotalBytes int64 `json:"total_bytes"`

	// Baseline is the key of the dump this one was compared with, empty
	// when there was none.
	Baseline   string `json:"baseline,omitempty"`
	NewObjects int    `json:"new_objects,omitempty"`

	RootsByType map[string]int        `json:"roots_by_type"`
	Histogram   []ClassHistogramEntry `json:"histogram"`
}

// ClassHistogramEntry holds the instance totals of one class.
type ClassHistogramEntry struct {
	ClassName    string `json:"class_name"`
	Category     string `json:"category"`
	Instances    int    `json:"instances"`
	Bytes        int64  `json:"bytes"`
	NewInstances int    `json:"new_instances,omitempty"`
}

// HasBaseline reports whether the summary was computed against a baseline.
func (s *SnapshotSummary) HasBaseline() bool {
	return s.Baseline != ""
}

// SortHistogram orders the histogram by bytes, then instances, then name.
func (s *SnapshotSummary) SortHistogram() {
	sort.SliceStable(s.Histogram, func(i, j int) bool {
		a, b := s.Histogram[i], s.Histogram[j]
		if a.Bytes != b.Bytes {
			return a.Bytes > b.Bytes
		}
		if a.Instances != b.Instances {
			return a.Instances > b.Instances
		}
		return a.ClassName < b.ClassName
	})
}

// TopClasses returns at most n histogram entries accepted by keep, in
// histogram order. n <= 0 means no limit; a nil keep accepts everything.
func (s *SnapshotSummary) TopClasses(n int, keep func(ClassHistogramEntry) bool) []ClassHistogramEntry {
	var out []ClassHistogramEntry
	for _, e := range s.Histogram {
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, e)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// RootTypes returns the root type names sorted by count, largest first.
func (s *SnapshotSummary) RootTypes() []string {
	names := make([]string, 0, len(s.RootsByType))
	for name := range s.RootsByType {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := s.RootsByType[names[i]], s.RootsByType[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}
