package invoice

import "time"

// RetryPolicy mirrors webhooks.RetryPolicy's exponential-backoff
// shape, narrowed to spec.md §4.9's "3 attempts over <= 5 minutes".
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Second,
		MaxDelay:      2 * time.Minute,
		BackoffFactor: 3.0,
	}
}

// delayAfter returns the backoff delay after the given failed attempt
// number (1-based: delayAfter(1) is the wait before the second attempt).
func (p RetryPolicy) delayAfter(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}
