package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// MinCountCheck fails while count() reports fewer than want entries. It is
// used to hold readiness until a store has been populated.
func MinCountCheck(what string, want int, count func() int) CheckFunc {
	return func(_ context.Context) error {
		if n := count(); n < want {
			return errors.Errorf("%s: have %d, want at least %d", what, n, want)
		}
		return nil
	}
}
