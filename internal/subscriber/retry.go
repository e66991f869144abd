package subscriber

import (
	"context"
	"time"
)

const (
	defaultBaseBackoff = 100 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
)

// retryPolicy doubles the delay after each failure, capped at max.
// retries counts attempts after the first call.
type retryPolicy struct {
	retries int
	base    time.Duration
	max     time.Duration
}

func (c Config) retry() retryPolicy {
	p := retryPolicy{retries: c.MaxRetries, base: c.RetryBackoff, max: c.MaxBackoff}
	if p.retries < 0 {
		p.retries = 0
	}
	if p.base <= 0 {
		p.base = defaultBaseBackoff
	}
	if p.max <= 0 {
		p.max = defaultMaxBackoff
	}
	if p.max < p.base {
		p.max = p.base
	}
	return p
}

// delay is the wait before retry number attempt (0-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.max {
			return p.max
		}
	}
	return d
}

// do calls fn until it succeeds, the retries run out or ctx ends.
// The last error from fn is returned, or ctx.Err() when ctx ended during a wait.
func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.retries {
			return err
		}
		if !sleep(ctx, p.delay(attempt)) {
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
