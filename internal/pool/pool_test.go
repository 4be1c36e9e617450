package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesItemOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	results, err := Run(context.Background(), items, 4, func(_ context.Context, index int, item int) (int, error) {
		// Later items finish first to force out-of-order completion.
		time.Sleep(time.Duration(len(items)-index) * time.Millisecond)
		return item * 10, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, res := range results {
		if res.Index != i || res.Value != i*10 || res.Err != nil {
			t.Fatalf("result[%d] = %+v", i, res)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 3
	var inFlight, peak int64
	items := make([]int, 24)

	_, err := Run(context.Background(), items, workers, func(_ context.Context, _ int, _ int) (struct{}, error) {
		current := atomic.AddInt64(&inFlight, 1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt64(&peak); got > workers {
		t.Fatalf("peak concurrency %d exceeded limit %d", got, workers)
	}
}

func TestRunIsolatesFailuresAndPanics(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3}
	results, err := Run(context.Background(), items, 2, func(_ context.Context, index int, item int) (int, error) {
		switch index {
		case 1:
			return 0, boom
		case 2:
			panic("worker exploded")
		default:
			return item, nil
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Err != nil || results[3].Err != nil {
		t.Fatalf("sibling outcomes polluted: %+v", results)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Fatalf("result[1].Err = %v", results[1].Err)
	}
	if results[2].Err == nil {
		t.Fatal("panic not captured as item outcome")
	}
}

func TestRunRejectsUnresolvedWorkerCount(t *testing.T) {
	if _, err := Run(context.Background(), []int{1}, 0, func(_ context.Context, _ int, i int) (int, error) { return i, nil }); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestRunStopsDispatchingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started int64
	var once sync.Once

	items := make([]int, 32)
	results, err := Run(ctx, items, 1, func(_ context.Context, _ int, _ int) (struct{}, error) {
		atomic.AddInt64(&started, 1)
		once.Do(cancel)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var cancelled int
	for _, res := range results {
		if errors.Is(res.Err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Fatal("expected undispatched items to carry context error")
	}
	if atomic.LoadInt64(&started)+int64(cancelled) != int64(len(items)) {
		t.Fatalf("started %d + cancelled %d != %d", started, cancelled, len(items))
	}
}
