// Package testutil holds helpers shared by package tests.
package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "walletfeed/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	NotFounds int32
	Invalid   int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.NotFounds + r.Invalid
}

// RunConcurrent executes fn in parallel goroutines, releasing them together,
// and buckets each result by its domain error code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, notFounds, invalid atomic.Int32
	start := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidInput):
				invalid.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		NotFounds: notFounds.Load(),
		Invalid:   invalid.Load(),
	}
}
