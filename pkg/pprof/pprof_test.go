package pprof

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfileTypes(t *testing.T) {
	tests := []struct {
		input   string
		want    []ProfileType
		wantErr bool
	}{
		{"", DefaultProfileTypes(), false},
		{"cpu", []ProfileType{ProfileCPU}, false},
		{"HEAP, goroutine", []ProfileType{ProfileHeap, ProfileGoroutine}, false},
		{"heap,heap,allocs", []ProfileType{ProfileHeap, ProfileAllocs}, false},
		{"cpu,threads", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProfileTypes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Profiles: DefaultProfileTypes()}.Validate())
	assert.Error(t, Config{Dir: "x"}.Validate())
	assert.Error(t, Config{Dir: "x", Profiles: DefaultProfileTypes(), CPURate: -1}.Validate())
	assert.NoError(t, Config{Dir: "x", Profiles: DefaultProfileTypes()}.Validate())
}

func TestProfiler_StartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pprof")
	p, err := Start(Config{Dir: dir, Profiles: []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}})
	require.NoError(t, err)
	assert.Equal(t, dir, p.Dir())

	files, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "cpu-"))
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	again, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, files, again)
}

func TestProfiler_SnapshotOnly(t *testing.T) {
	p, err := Start(Config{Dir: t.TempDir(), Profiles: []ProfileType{ProfileBlock, ProfileMutex}})
	require.NoError(t, err)

	files, err := p.Stop()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestSummarize(t *testing.T) {
	p, err := Start(Config{Dir: t.TempDir(), Profiles: []ProfileType{ProfileGoroutine}})
	require.NoError(t, err)
	files, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, files, 1)

	s, err := Summarize(files[0], 3)
	require.NoError(t, err)
	assert.Equal(t, "goroutine", s.SampleType)
	assert.Positive(t, s.Samples)
	assert.Positive(t, s.Total)
	assert.LessOrEqual(t, len(s.Top), 3)
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(filepath.Join(t.TempDir(), "missing.pprof"), 1)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pprof")
	require.NoError(t, os.WriteFile(bad, []byte("not a profile"), 0644))
	_, err = Summarize(bad, 1)
	assert.Error(t, err)
}
