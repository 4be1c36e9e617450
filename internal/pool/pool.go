package pool

import (
	"context"
	"fmt"
	"sync"
)

// Result is one item's outcome. Index is the item's position in the input
// slice, not its completion order.
type Result[O any] struct {
	Index int
	Value O
	Err   error
}

// Run executes fn over items with at most workers concurrently in flight and
// returns outcomes in item order once all finish. A worker failure or panic
// becomes that item's Result; siblings keep running. Context cancellation
// stops dispatching new items and records ctx.Err() for the undispatched
// remainder.
func Run[I, O any](ctx context.Context, items []I, workers int, fn func(ctx context.Context, index int, item I) (O, error)) ([]Result[O], error) {
	if workers <= 0 {
		return nil, fmt.Errorf("pool: worker count %d not resolved", workers)
	}
	if fn == nil {
		return nil, fmt.Errorf("pool: worker function required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]Result[O], len(items))
	if len(items) == 0 {
		return results, nil
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for index, item := range items {
		if err := ctx.Err(); err != nil {
			results[index] = Result[O]{Index: index, Err: err}
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(index int, item I) {
			defer wg.Done()
			defer func() { <-sem }()
			results[index] = runOne(ctx, index, item, fn)
		}(index, item)
	}

	wg.Wait()
	return results, nil
}

func runOne[I, O any](ctx context.Context, index int, item I, fn func(ctx context.Context, index int, item I) (O, error)) (res Result[O]) {
	res.Index = index
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("pool: worker panic: %v", r)
		}
	}()
	res.Value, res.Err = fn(ctx, index, item)
	return res
}
