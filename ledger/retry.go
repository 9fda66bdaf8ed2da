// retry.go - Small bounded-retry combinator.
//
// Replaces ad hoc retry-until-success loops: attempt an operation up to n
// times while shouldRetry says the error is worth another try, else fail
// with the last error.
package ledger

import "context"

// attempt runs op up to n times. It stops early on success, on context
// cancellation, or when shouldRetry returns false for the error.
func attempt(ctx context.Context, n int, op func() error, shouldRetry func(error) bool) error {
	var err error
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = op()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
	}
	return err
}
