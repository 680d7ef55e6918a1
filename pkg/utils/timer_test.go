package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(10 * time.Millisecond)
	return c.now
}

func TestTimer_Phases(t *testing.T) {
	timer := NewTimer("load", WithClock(&stepClock{}))

	pt := timer.Start("parse")
	d := pt.Stop()
	assert.Equal(t, 10*time.Millisecond, d)
	assert.Equal(t, d, pt.Stop(), "second stop is a no-op")

	err := timer.TimeFuncWithError("resolve", func() error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")

	ran := false
	assert.Equal(t, 10*time.Millisecond, timer.TimeFunc("bind", func() { ran = true }))
	assert.True(t, ran)

	phases := timer.Phases()
	require.Len(t, phases, 3)
	assert.Equal(t, "parse", phases[0].Name)
	assert.Equal(t, "resolve", phases[1].Name)
	assert.Equal(t, "bind", phases[2].Name)
}

func TestTimer_Disabled(t *testing.T) {
	timer := NewTimer("load", WithEnabled(false))
	timer.Start("parse").Stop()
	assert.Empty(t, timer.Phases())
}

func TestTimer_PrintSummary(t *testing.T) {
	rec := NewRecordingLogger()
	timer := NewTimer("load", WithLogger(rec), WithClock(&stepClock{}))
	timer.Start("parse").Stop()
	timer.PrintSummary()

	assert.Equal(t, 1, rec.Count(LevelInfo, "load: parse=10ms"))
}
