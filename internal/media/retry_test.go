package media_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"mediasort/internal/media"
)

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	errBusy := errors.New("device busy")
	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		wantAttempts int
		wantErr      bool
		wantRetries  []int
	}{
		{name: "first try", maxAttempts: 3, failures: 0, wantAttempts: 1},
		{name: "recovers", maxAttempts: 3, failures: 2, wantAttempts: 3, wantRetries: []int{1, 2}},
		{name: "exhausted", maxAttempts: 3, failures: 5, wantAttempts: 3, wantErr: true, wantRetries: []int{1, 2}},
		{name: "zero means once", maxAttempts: 0, failures: 5, wantAttempts: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var slept []time.Duration
			policy := media.RetryPolicy{
				MaxAttempts: tt.maxAttempts,
				Delay:       media.FixedDelay(time.Second),
				Sleep:       func(d time.Duration) { slept = append(slept, d) },
			}
			calls := 0
			var retries []int
			attempts, err := policy.Do(func() error {
				calls++
				if calls <= tt.failures {
					return errBusy
				}
				return nil
			}, func(attempt int, err error) {
				retries = append(retries, attempt)
			})

			if attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("attempts = %d, calls = %d, want %d", attempts, calls, tt.wantAttempts)
			}
			if tt.wantErr != (err != nil) {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errBusy) {
				t.Errorf("error = %v, want last attempt's error", err)
			}
			if !slices.Equal(retries, tt.wantRetries) {
				t.Errorf("retries = %v, want %v", retries, tt.wantRetries)
			}
			if len(slept) != len(tt.wantRetries) {
				t.Errorf("slept %d times, want %d", len(slept), len(tt.wantRetries))
			}
		})
	}
}

func TestRetryPolicy_DoStopsWhenDestinationExists(t *testing.T) {
	t.Parallel()

	slept := 0
	policy := media.RetryPolicy{
		MaxAttempts: 10,
		Delay:       media.FixedDelay(3 * time.Second),
		Sleep:       func(time.Duration) { slept++ },
	}
	taken := fmt.Errorf("%w: /dest/2018/3/a.jpg", media.ErrDestinationExists)
	attempts, err := policy.Do(func() error { return taken }, nil)
	if attempts != 1 || slept != 0 {
		t.Errorf("attempts = %d, slept %d times, want one attempt and no sleep", attempts, slept)
	}
	if !errors.Is(err, media.ErrDestinationExists) {
		t.Errorf("error = %v, want ErrDestinationExists", err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	capped := media.ExponentialBackoff(time.Second, 5*time.Second)
	uncapped := media.ExponentialBackoff(time.Second, 0)
	tests := []struct {
		attempt      int
		wantCapped   time.Duration
		wantUncapped time.Duration
	}{
		{attempt: 1, wantCapped: time.Second, wantUncapped: time.Second},
		{attempt: 2, wantCapped: 2 * time.Second, wantUncapped: 2 * time.Second},
		{attempt: 3, wantCapped: 4 * time.Second, wantUncapped: 4 * time.Second},
		{attempt: 4, wantCapped: 5 * time.Second, wantUncapped: 8 * time.Second},
		{attempt: 9, wantCapped: 5 * time.Second, wantUncapped: 256 * time.Second},
	}
	for _, tt := range tests {
		if got := capped(tt.attempt); got != tt.wantCapped {
			t.Errorf("capped(%d) = %v, want %v", tt.attempt, got, tt.wantCapped)
		}
		if got := uncapped(tt.attempt); got != tt.wantUncapped {
			t.Errorf("uncapped(%d) = %v, want %v", tt.attempt, got, tt.wantUncapped)
		}
	}
}
