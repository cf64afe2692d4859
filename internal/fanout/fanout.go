// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fanout runs one function per item concurrently and records the
// outcome of every item, so callers decide what a failed item means.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Options bounds a Map call.
type Options struct {
	// Concurrency caps in-flight calls. Zero or negative means one
	// goroutine per item.
	Concurrency int

	// Limiter, when set, is waited on before every call.
	Limiter *rate.Limiter
}

// NewLimiter returns a limiter allowing rps calls per second with a burst
// of one per second's worth of calls, or nil when rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Result is the outcome for one item.
type Result[R any] struct {
	Value R
	Err   error
}

// OK reports whether the item succeeded.
func (r Result[R]) OK() bool { return r.Err == nil }

// Map calls fn for every item and returns results in item order. It waits
// for every started call before returning. Items not started because ctx
// was cancelled carry ctx.Err().
func Map[T, R any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, i int, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	width := opts.Concurrency
	if width <= 0 || width > len(items) {
		width = len(items)
	}
	sem := make(chan struct{}, width)

	var wg sync.WaitGroup
	for i, item := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				results[j].Err = ctx.Err()
			}
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(ctx); err != nil {
					results[i].Err = err
					return
				}
			}
			v, err := fn(ctx, i, item)
			results[i] = Result[R]{Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return results
}

// Errors returns the non-nil errors in results, in item order.
func Errors[R any](results []Result[R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
