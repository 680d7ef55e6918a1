package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time so phase durations can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Phase is one named, timed step.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	done     bool
}

// Timer records named phases such as parsing and resolving a snapshot and
// reports them through a Logger.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  map[string]*Phase
	order   []string
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger used by PrintSummary.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithEnabled turns recording on or off.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTimer creates an enabled timer.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		logger:  &NullLogger{},
		enabled: true,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// PhaseTimer stops a single phase, typically via defer.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop ends the phase. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.name)
}

// Start begins a phase and returns its stopper.
func (t *Timer) Start(name string) *PhaseTimer {
	if t.enabled {
		t.mu.Lock()
		if _, ok := t.phases[name]; !ok {
			t.order = append(t.order, name)
		}
		t.phases[name] = &Phase{Name: name, Start: t.clock.Now()}
		t.mu.Unlock()
	}
	return &PhaseTimer{timer: t, name: name}
}

// StopPhase ends a phase and returns its duration.
func (t *Timer) StopPhase(name string) time.Duration {
	if !t.enabled {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.phases[name]
	if !ok {
		return 0
	}
	if !p.done {
		p.Duration = t.clock.Now().Sub(p.Start)
		p.done = true
	}
	return p.Duration
}

// TimeFunc runs fn inside a phase.
func (t *Timer) TimeFunc(name string, fn func()) time.Duration {
	pt := t.Start(name)
	fn()
	return pt.Stop()
}

// TimeFuncWithError runs fn inside a phase.
func (t *Timer) TimeFuncWithError(name string, fn func() error) error {
	pt := t.Start(name)
	defer pt.Stop()
	return fn()
}

// Phases returns completed phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		if p := t.phases[name]; p.done {
			out = append(out, *p)
		}
	}
	return out
}

// Summary renders the completed phases and the total elapsed time.
func (t *Timer) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:", t.name)
	for _, p := range t.Phases() {
		fmt.Fprintf(&sb, " %s=%s", p.Name, p.Duration.Round(time.Microsecond))
	}
	fmt.Fprintf(&sb, " total=%s", t.clock.Now().Sub(t.start).Round(time.Microsecond))
	return sb.String()
}

// PrintSummary logs Summary at info level.
func (t *Timer) PrintSummary() {
	if !t.enabled {
		return
	}
	t.logger.Info("%s", t.Summary())
}
