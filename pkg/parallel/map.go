package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result is the outcome of fn for one input.
type Result[T any, R any] struct {
	Input    T
	Value    R
	Err      error
	Duration time.Duration
}

// Map calls fn for every input on up to cfg.Workers goroutines and returns
// the results in input order. Inputs not started before ctx ends report
// ctx.Err().
func Map[T any, R any](ctx context.Context, cfg PoolConfig, inputs []T, fn func(ctx context.Context, input T) (R, error)) []Result[T, R] {
	if len(inputs) == 0 {
		return nil
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	results := make([]Result[T, R], len(inputs))
	started := make([]bool, len(inputs))

	// Workers claim the next index until inputs run out or ctx ends.
	var next atomic.Int64
	var wg sync.WaitGroup
	for range cfg.workersFor(len(inputs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				i := int(next.Add(1) - 1)
				if i >= len(inputs) {
					return
				}
				started[i] = true
				start := time.Now()
				v, err := fn(ctx, inputs[i])
				results[i] = Result[T, R]{Input: inputs[i], Value: v, Err: err, Duration: time.Since(start)}
			}
		}()
	}
	wg.Wait()

	for i := range results {
		if !started[i] {
			results[i] = Result[T, R]{Input: inputs[i], Err: ctx.Err()}
		}
	}
	return results
}

// FirstError returns the error of the earliest failed result, or nil.
func FirstError[T any, R any](results []Result[T, R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
