package internal

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy shapes the backoff loop around provider calls. Attempts is the
// total number of tries, so 3 means one call plus two retries.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 200 * time.Millisecond
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// delay returns the pause before retry number attempt (0-based), capped and
// with up to 10% jitter to keep callers from retrying in lockstep.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if cap := float64(p.MaxDelay); d > cap {
		d = cap
	}
	return time.Duration(d + rand.Float64()*d*0.1)
}

// withRetry runs fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func withRetry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	p = p.normalized()
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}
