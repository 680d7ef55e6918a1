// Package pprof profiles the process itself while it loads and walks a
// heap dump. A CPU profile covers the whole session; the remaining profile
// types are snapshotted when the session stops.
//
//	p, err := pprof.Start(pprof.Config{Dir: "./pprof", Profiles: pprof.DefaultProfileTypes()})
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
package pprof

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}
}

// ParseProfileTypes parses a comma-separated string into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	parts := strings.Split(s, ",")
	types := make([]ProfileType, 0, len(parts))
	seen := make(map[ProfileType]bool)
	for _, p := range parts {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		if seen[pt] {
			continue
		}
		seen[pt] = true
		types = append(types, pt)
	}
	return types, nil
}

// Config holds the profiling configuration.
type Config struct {
	// Dir is the output directory for profile files.
	Dir string
	// Profiles lists the profile types to collect.
	Profiles []ProfileType
	// CPURate is the CPU sampling rate in Hz. Zero keeps the runtime default.
	CPURate int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("pprof output directory is required")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile type is required")
	}
	if c.CPURate < 0 {
		return fmt.Errorf("cpu rate must be non-negative, got %d", c.CPURate)
	}
	return nil
}

func (c Config) has(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Profiler is a running profiling session.
type Profiler struct {
	config  Config
	stamp   string
	cpuFile *os.File

	mu      sync.Mutex
	stopped bool
	files   []string
}

// Start creates the output directory and begins CPU profiling if requested.
func Start(cfg Config) (*Profiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pprof directory: %w", err)
	}

	p := &Profiler{
		config: cfg,
		stamp:  time.Now().Format("20060102-150405"),
	}

	if cfg.has(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.has(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	if cfg.has(ProfileCPU) {
		if cfg.CPURate > 0 {
			runtime.SetCPUProfileRate(cfg.CPURate)
		}
		f, err := os.Create(p.path(ProfileCPU))
		if err != nil {
			return nil, fmt.Errorf("failed to create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		p.cpuFile = f
	}

	return p, nil
}

func (p *Profiler) path(pt ProfileType) string {
	return filepath.Join(p.config.Dir, fmt.Sprintf("%s-%s.pprof", pt, p.stamp))
}

// Dir returns the output directory.
func (p *Profiler) Dir() string {
	return p.config.Dir
}

// Stop ends CPU profiling, writes the snapshot profiles and returns every
// file written. Calling Stop again returns the same files.
func (p *Profiler) Stop() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return p.files, nil
	}
	p.stopped = true

	var firstErr error
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			firstErr = err
		} else {
			p.files = append(p.files, p.cpuFile.Name())
		}
	}

	for _, pt := range p.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		if pt == ProfileHeap || pt == ProfileAllocs {
			runtime.GC()
		}
		path := p.path(pt)
		if err := writeProfile(pt, path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.files = append(p.files, path)
	}

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)

	return p.files, firstErr
}

func writeProfile(pt ProfileType, path string) error {
	prof := pprof.Lookup(string(pt))
	if prof == nil {
		return fmt.Errorf("profile %q not available", pt)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	if err := prof.WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	return f.Close()
}

// TopFunction is one row of a flat profile.
type TopFunction struct {
	Name string
	Flat int64
}

// Summary describes a written profile file.
type Summary struct {
	Path       string
	SampleType string
	Unit       string
	Samples    int
	Total      int64
	Top        []TopFunction
}

// Summarize parses a profile written by Stop and returns its totals and
// the n functions with the largest flat value of the last sample type.
func Summarize(path string, n int) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	s := &Summary{Path: path, Samples: len(prof.Sample)}
	if len(prof.SampleType) == 0 {
		return s, nil
	}
	idx := len(prof.SampleType) - 1
	s.SampleType = prof.SampleType[idx].Type
	s.Unit = prof.SampleType[idx].Unit

	flat := make(map[string]int64)
	for _, sample := range prof.Sample {
		v := sample.Value[idx]
		s.Total += v
		if len(sample.Location) == 0 || len(sample.Location[0].Line) == 0 {
			continue
		}
		if fn := sample.Location[0].Line[0].Function; fn != nil {
			flat[fn.Name] += v
		}
	}

	for name, v := range flat {
		s.Top = append(s.Top, TopFunction{Name: name, Flat: v})
	}
	sort.Slice(s.Top, func(i, j int) bool {
		if s.Top[i].Flat != s.Top[j].Flat {
			return s.Top[i].Flat > s.Top[j].Flat
		}
		return s.Top[i].Name < s.Top[j].Name
	})
	if n > 0 && len(s.Top) > n {
		s.Top = s.Top[:n]
	}
	return s, nil
}
