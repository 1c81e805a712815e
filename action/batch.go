package action

import (
	"context"
	"slices"
	"sync"
	"time"
)

// ExecuteBatch runs calls concurrently and returns their outcomes in call
// order. Calls without a mode run as ModeParallel. Concurrency is bounded by
// DispatcherOptions.MaxParallel. Calls not started before ctx is done are
// reported with ctx's error. calls is not modified.
func (d *Dispatcher) ExecuteBatch(ctx context.Context, calls []Call) []Outcome {
	n := len(calls)
	outcomes := make([]Outcome, n)
	if n == 0 {
		return outcomes
	}

	calls = slices.Clone(calls)
	for i := range calls {
		if calls[i].Mode == "" {
			calls[i].Mode = ModeParallel
		}
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		outcomes[0] = d.Execute(ctx, calls[0])
		return outcomes
	}

	maxPar := d.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			for j := i; j < n; j++ {
				outcomes[j] = Outcome{Call: calls[j], Err: ctx.Err()}
			}
			break
		}

		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[idx] = d.Execute(ctx, c)
		}(i, calls[i])
	}

	wg.Wait()

	d.opts.Logger.Debug(
		"action.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return outcomes
}
