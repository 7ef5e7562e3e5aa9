package media

import (
	"errors"
	"time"
)

// RetryPolicy bounds how often a failing operation is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay returns the wait before attempt number attempt+1.
	Delay func(attempt int) time.Duration
	// Sleep waits; time.Sleep when nil.
	Sleep func(time.Duration)
}

// FixedDelay waits d between attempts.
func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles base after every attempt, capped at limit when limit > 0.
func ExponentialBackoff(base, limit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if limit > 0 && d >= limit {
				return limit
			}
		}
		if limit > 0 && d > limit {
			return limit
		}
		return d
	}
}

// DefaultRetryPolicy makes 10 attempts 3 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Delay:       FixedDelay(3 * time.Second),
	}
}

// Do calls fn until it succeeds or MaxAttempts is reached. onRetry, if
// non-nil, is called after each failed attempt that will be retried.
// An ErrDestinationExists failure is returned at once.
// It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(fn func() error, onRetry func(attempt int, err error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts || errors.Is(err, ErrDestinationExists) {
			return attempt, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if p.Delay != nil {
			sleep(p.Delay(attempt))
		}
	}
	return maxAttempts, err
}
