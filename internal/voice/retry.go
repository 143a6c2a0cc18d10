package voice

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy retries an operation with a fixed delay between attempts.
type RetryPolicy struct {
	Delay time.Duration
	// MaxRetries bounds the retries after the first attempt; 0 means
	// retry until the context ends.
	MaxRetries uint64
}

// Do runs fn until it succeeds, the retries are used up or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	d := p.Delay
	if d <= 0 {
		d = time.Millisecond
	}
	b := retry.NewConstant(d)
	if p.MaxRetries > 0 {
		b = retry.WithMaxRetries(p.MaxRetries, b)
	}
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// sleep waits d unless ctx ends first. It reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
