package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBase(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		pollCount int
		want      time.Duration
	}{
		{0, 3 * time.Second},
		{1, 4 * time.Second},
		{10, 13 * time.Second},
		{57, 60 * time.Second},
		{58, 60 * time.Second},
		{100000, 60 * time.Second},
		{-1, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Base(tt.pollCount); got != tt.want {
			t.Errorf("Base(%d) = %v, want %v", tt.pollCount, got, tt.want)
		}
	}
}

func TestNextIncrementsPollCount(t *testing.T) {
	b := NewBackoff(DefaultPolicy(), WithJitterFunc(func(time.Duration) time.Duration { return 0 }))
	want := []time.Duration{3 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if b.PollCount() != 3 {
		t.Errorf("PollCount() = %d, want 3", b.PollCount())
	}
}

func TestNextAddsJitter(t *testing.T) {
	var asked time.Duration
	b := NewBackoff(DefaultPolicy(), WithJitterFunc(func(n time.Duration) time.Duration {
		asked = n
		return 2 * time.Second
	}))
	if got := b.Next(); got != 5*time.Second {
		t.Errorf("Next() = %v, want 5s", got)
	}
	if asked != DefaultJitter {
		t.Errorf("jitter bound = %v, want %v", asked, DefaultJitter)
	}
}

func TestZeroJitterSkipsRandom(t *testing.T) {
	b := NewBackoff(PollingPolicy{MinSleep: time.Second, MaxSleep: time.Second}, WithJitterFunc(func(time.Duration) time.Duration {
		t.Fatal("jitter called with zero bound")
		return 0
	}))
	if got := b.Next(); got != time.Second {
		t.Errorf("Next() = %v, want 1s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    PollingPolicy
		want error
	}{
		{"default", DefaultPolicy(), nil},
		{"zero min", PollingPolicy{MaxSleep: time.Second}, ErrInvalidInterval},
		{"negative jitter", PollingPolicy{MinSleep: time.Second, MaxSleep: time.Second, Jitter: -1}, ErrInvalidInterval},
		{"max below min", PollingPolicy{MinSleep: 2 * time.Second, MaxSleep: time.Second}, ErrMaxBelowMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPolicyFromSeconds(t *testing.T) {
	p, err := PolicyFromSeconds(3, 60, 5)
	if err != nil {
		t.Fatalf("PolicyFromSeconds() error = %v", err)
	}
	if p != DefaultPolicy() {
		t.Errorf("PolicyFromSeconds(3, 60, 5) = %+v, want default", p)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() = %v, want context.Canceled", err)
	}
}

func TestSleepElapses(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() = %v, want nil", err)
	}
}

// For pollCount = 0..N the computed sleep is non-decreasing until it reaches
// MaxSleep and never exceeds MaxSleep + Jitter.
func TestBackoffMonotonicBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("base is non-decreasing and capped", prop.ForAll(
		func(minSec, extraSec, jitterSec, n int) bool {
			p := PollingPolicy{
				MinSleep: time.Duration(minSec) * time.Second,
				MaxSleep: time.Duration(minSec+extraSec) * time.Second,
				Jitter:   time.Duration(jitterSec) * time.Second,
			}
			prev := time.Duration(0)
			for i := 0; i <= n; i++ {
				base := p.Base(i)
				if base < prev || base > p.MaxSleep || base < p.MinSleep {
					return false
				}
				prev = base
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(0, 120),
		gen.IntRange(0, 10),
		gen.IntRange(0, 200),
	))

	properties.Property("next stays within max plus jitter", prop.ForAll(
		func(minSec, extraSec, jitterSec, n int) bool {
			p := PollingPolicy{
				MinSleep: time.Duration(minSec) * time.Second,
				MaxSleep: time.Duration(minSec+extraSec) * time.Second,
				Jitter:   time.Duration(jitterSec) * time.Second,
			}
			b := NewBackoff(p)
			for i := 0; i <= n; i++ {
				d := b.Next()
				if d < p.MinSleep || d > p.MaxSleep+p.Jitter {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(0, 120),
		gen.IntRange(0, 10),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}
