package startup

import (
	"context"
	"time"
)

// Fibonacci returns a generator of fibonacci multiples of unit: 1, 1, 2, 3,
// 5, ... units.
func Fibonacci(unit time.Duration) func() time.Duration {
	a, b := 1, 1
	return func() time.Duration {
		wait := time.Duration(a) * unit
		a, b = b, a+b
		return wait
	}
}

// Retry calls fn until it succeeds, retryable reports false, or attempts
// are exhausted, sleeping a fibonacci backoff between attempts. It returns
// the last error.
func Retry(ctx context.Context, attempts int, unit time.Duration, retryable func(error) bool, fn func(attempt int) error) error {
	next := Fibonacci(unit)
	var err error
	for attempt := 1; attempt <= max(attempts, 1); attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(next()):
		}
	}
	return err
}
