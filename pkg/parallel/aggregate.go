package parallel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Aggregate groups items by the key extract returns and folds their values
// with merge. Items are split into one contiguous chunk per worker; each
// worker folds into a private map and the maps are merged at the end, so
// merge must be associative. When ctx ends before every item is folded the
// partial result is returned with ctx's error.
func Aggregate[T any, K comparable, V any](
	ctx context.Context,
	cfg PoolConfig,
	items []T,
	extract func(item T) (K, V),
	merge func(a, b V) V,
) (map[K]V, error) {
	out := make(map[K]V)
	if len(items) == 0 {
		return out, nil
	}

	workers := cfg.workersFor(len(items))
	chunk := (len(items) + workers - 1) / workers
	partial := make([]map[K]V, workers)
	var stopped atomic.Bool

	var wg sync.WaitGroup
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(items))
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w int, part []T) {
			defer wg.Done()
			m := make(map[K]V)
			for _, it := range part {
				if ctx.Err() != nil {
					stopped.Store(true)
					break
				}
				k, v := extract(it)
				if prev, ok := m[k]; ok {
					v = merge(prev, v)
				}
				m[k] = v
			}
			partial[w] = m
		}(w, items[lo:hi])
	}
	wg.Wait()

	for _, m := range partial {
		for k, v := range m {
			if prev, ok := out[k]; ok {
				v = merge(prev, v)
			}
			out[k] = v
		}
	}
	if stopped.Load() {
		return out, ctx.Err()
	}
	return out, nil
}
