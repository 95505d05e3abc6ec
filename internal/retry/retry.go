// Package retry wraps github.com/cenkalti/backoff/v4 for the retry points
// named in the spec: lock acquisition on parent heaps/indexes and catalog
// scans that wait for another transaction's row locks. Grounded on the
// teacher's internal/storage/dolt/store.go (newServerRetryBackoff) and
// store_embedded.go (newEmbeddedOpenBackoff).
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Permanent wraps err so Do stops retrying immediately, matching
// backoff.Permanent usage in the teacher's dolt store.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// newBackOff builds a short exponential backoff suited to in-process lock
// contention (sub-second initial interval, a few seconds max), matching the
// scale of newServerRetryBackoff in the teacher's dolt store.
func newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}

// Do retries fn with exponential backoff until it succeeds, ctx is
// cancelled, or the backoff's MaxElapsedTime is exhausted. Wrap a
// non-retryable error from fn in Permanent to stop immediately.
func Do(ctx context.Context, fn func() error) error {
	bo := backoff.WithContext(newBackOff(), ctx)
	err := backoff.Retry(fn, bo)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return err
}
