// Package parallel runs independent work on a bounded number of goroutines.
package parallel

import (
	"runtime"
	"time"
)

// maxDefaultWorkers caps the default so small machines and large ones
// behave alike.
const maxDefaultWorkers = 8

// PoolConfig bounds a parallel run.
type PoolConfig struct {
	// Workers is the number of goroutines. Values below 1 mean the default.
	Workers int
	// Timeout limits the whole run; 0 means none.
	Timeout time.Duration
}

// DefaultPoolConfig uses one worker per CPU, between 2 and 8.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: defaultWorkers()}
}

func defaultWorkers() int {
	return min(max(runtime.NumCPU(), 2), maxDefaultWorkers)
}

// WithWorkers returns a copy using n workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.Workers = n
	return c
}

// WithTimeout returns a copy limited to d.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// workersFor returns how many goroutines to start for n items.
func (c PoolConfig) workersFor(n int) int {
	w := c.Workers
	if w < 1 {
		w = defaultWorkers()
	}
	return min(w, n)
}
