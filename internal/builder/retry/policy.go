// Package retry computes the sleep between build status fetches.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Default polling bounds.
const (
	DefaultMinSleep = 3 * time.Second
	DefaultMaxSleep = 60 * time.Second
	DefaultJitter   = 5 * time.Second

	// StopPollInterval is the fixed interval used while waiting for a
	// stopped build to complete.
	StopPollInterval = 5 * time.Second

	// step is added to the minimum sleep for every completed fetch.
	step = time.Second
)

// PollingPolicy is an immutable set of backoff bounds.
type PollingPolicy struct {
	MinSleep time.Duration
	MaxSleep time.Duration
	Jitter   time.Duration
}

// DefaultPolicy returns the default polling bounds.
func DefaultPolicy() PollingPolicy {
	return PollingPolicy{
		MinSleep: DefaultMinSleep,
		MaxSleep: DefaultMaxSleep,
		Jitter:   DefaultJitter,
	}
}

// PolicyFromSeconds builds a policy from whole-second bounds.
func PolicyFromSeconds(minSleep, maxSleep, jitter int) (PollingPolicy, error) {
	p := PollingPolicy{
		MinSleep: time.Duration(minSleep) * time.Second,
		MaxSleep: time.Duration(maxSleep) * time.Second,
		Jitter:   time.Duration(jitter) * time.Second,
	}
	return p, p.Validate()
}

// Validate checks that the bounds are usable.
func (p PollingPolicy) Validate() error {
	if p.MinSleep <= 0 || p.MaxSleep <= 0 || p.Jitter < 0 {
		return ErrInvalidInterval
	}
	if p.MaxSleep < p.MinSleep {
		return ErrMaxBelowMin
	}
	return nil
}

// Base returns the sleep before jitter for the given number of completed
// fetches: min(MaxSleep, MinSleep + pollCount*1s).
func (p PollingPolicy) Base(pollCount int) time.Duration {
	if pollCount < 0 {
		pollCount = 0
	}
	d := p.MinSleep + time.Duration(pollCount)*step
	if d > p.MaxSleep || d < p.MinSleep {
		return p.MaxSleep
	}
	return d
}

// JitterFunc returns a random duration in [0, n). n is always positive.
type JitterFunc func(n time.Duration) time.Duration

// RandomJitter draws uniformly from [0, n).
func RandomJitter(n time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(n)))
}

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer and observes cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff tracks the poll count of one invocation. It is not safe for
// concurrent use.
type Backoff struct {
	policy    PollingPolicy
	jitter    JitterFunc
	pollCount int
}

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithJitterFunc replaces the random jitter source.
func WithJitterFunc(fn JitterFunc) BackoffOption {
	return func(b *Backoff) {
		b.jitter = fn
	}
}

// NewBackoff creates a backoff for policy with a poll count of zero.
func NewBackoff(policy PollingPolicy, opts ...BackoffOption) *Backoff {
	b := &Backoff{
		policy: policy,
		jitter: RandomJitter,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Next returns the next sleep duration and increments the poll count. The
// count is never reset, so transient retries also lengthen the interval.
func (b *Backoff) Next() time.Duration {
	d := b.policy.Base(b.pollCount)
	b.pollCount++
	if b.policy.Jitter > 0 {
		d += b.jitter(b.policy.Jitter)
	}
	return d
}

// PollCount returns the number of durations handed out so far.
func (b *Backoff) PollCount() int {
	return b.pollCount
}
