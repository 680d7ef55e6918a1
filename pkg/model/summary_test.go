package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *SnapshotSummary {
	return &SnapshotSummary{
		Key: "app.hprof",
		RootsByType: map[string]int{
			"Java Local":   3,
			"System Class": 12,
			"JNI Global":   3,
		},
		Histogram: []ClassHistogramEntry{
			{ClassName: "[C", Category: "primitive", Instances: 10, Bytes: 400},
			{ClassName: "com.example.Node", Category: "application", Instances: 5, Bytes: 80},
			{ClassName: "java.lang.String", Category: "jdk", Instances: 10, Bytes: 400},
			{ClassName: "com.example.Cache", Category: "application", Instances: 1, Bytes: 80},
		},
	}
}

func TestSnapshotSummary_SortHistogram(t *testing.T) {
	s := sampleSummary()
	s.SortHistogram()

	var names []string
	for _, e := range s.Histogram {
		names = append(names, e.ClassName)
	}
	assert.Equal(t, []string{"[C", "java.lang.String", "com.example.Node", "com.example.Cache"}, names)
}

func TestSnapshotSummary_TopClasses(t *testing.T) {
	s := sampleSummary()
	s.SortHistogram()

	tests := []struct {
		name string
		n    int
		keep func(ClassHistogramEntry) bool
		want []string
	}{
		{"all", 0, nil, []string{"[C", "java.lang.String", "com.example.Node", "com.example.Cache"}},
		{"top two", 2, nil, []string{"[C", "java.lang.String"}},
		{"application only", 0, func(e ClassHistogramEntry) bool { return e.Category == "application" }, []string{"com.example.Node", "com.example.Cache"}},
		{"application top one", 1, func(e ClassHistogramEntry) bool { return e.Category == "application" }, []string{"com.example.Node"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range s.TopClasses(tt.n, tt.keep) {
				got = append(got, e.ClassName)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotSummary_RootTypes(t *testing.T) {
	assert.Equal(t, []string{"System Class", "JNI Global", "Java Local"}, sampleSummary().RootTypes())
}

func TestSnapshotSummary_JSON(t *testing.T) {
	s := sampleSummary()
	assert.False(t, s.HasBaseline())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "baseline")
	assert.NotContains(t, string(data), "new_instances")

	s.Baseline = "old.hprof"
	s.NewObjects = 4
	assert.True(t, s.HasBaseline())
	data, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"baseline":"old.hprof"`)
	assert.Contains(t, string(data), `"new_objects":4`)
}
