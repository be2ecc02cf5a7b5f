// Package parallel runs independent deliveries on a bounded worker pool.
package parallel

import (
	"context"
	"sync"
)

// Each calls fn for every item using at most workers goroutines and
// returns the error of each call at the item's index. Every item is
// attempted; a failing call does not cancel the others. Items not yet
// started when ctx is done fail with ctx.Err().
//
// With a single worker the items are processed in order.
func Each[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				errs[i] = fn(ctx, items[i])
			}
		}()
	}

	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return errs
}
