package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("dial tcp: i/o timeout")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", base, KindFatal},
		{"transient", Transient(base), KindTransientNetwork},
		{"wrapped transient", fmt.Errorf("fetching build: %w", Transient(base)), KindTransientNetwork},
		{"config", Config("project name is required"), KindConfig},
		{"auth", Wrap(KindAuth, base), KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("IsTransient(nil) = true, want false")
	}
	if !IsTransient(fmt.Errorf("outer: %w", Transient(errors.New("timeout")))) {
		t.Error("IsTransient(wrapped transient) = false, want true")
	}
	if IsTransient(New(KindFatal, "boom")) {
		t.Error("IsTransient(fatal) = true, want false")
	}
}

func TestDescribe(t *testing.T) {
	primary, secondary := Describe(Config("project name is required"))
	if primary != MsgConfiguredImproperly {
		t.Errorf("primary = %q, want %q", primary, MsgConfiguredImproperly)
	}
	if secondary != "project name is required" {
		t.Errorf("secondary = %q", secondary)
	}

	primary, secondary = Describe(errors.New("access denied"))
	if primary != "access denied" || secondary != "" {
		t.Errorf("Describe(plain) = (%q, %q)", primary, secondary)
	}
}

func TestBuildErrorUnwrap(t *testing.T) {
	cause := errors.New("no such bucket")
	err := New(KindFatal, MsgNotVersionedBucket).WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Primary() != MsgNotVersionedBucket {
		t.Errorf("Primary() = %q", err.Primary())
	}
}
