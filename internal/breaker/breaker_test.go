package breaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := New(5, time.Minute)
	for i := 0; i < 4; i++ {
		if err := b.Call(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
		if b.State() != StateClosed {
			t.Fatalf("call %d: breaker opened early", i)
		}
	}
	if err := b.Call(fail); !errors.Is(err, errBoom) {
		t.Fatalf("fifth call: expected boom, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after 5 failures, got %v", b.State())
	}
	if err := b.Call(ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b := New(5, time.Minute)
	for i := 0; i < 4; i++ {
		b.Call(fail)
	}
	if err := b.Call(ok); err != nil {
		t.Fatalf("success call: %v", err)
	}
	if got := b.Failures(); got != 0 {
		t.Fatalf("expected failure count reset, got %d", got)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED, got %v", b.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := New(5, 60*time.Second, WithClock(clock))

	for i := 0; i < 5; i++ {
		b.Call(fail)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %v", b.State())
	}

	// Before the recovery timeout the probe is rejected.
	now = now.Add(30 * time.Second)
	if err := b.Call(ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen before timeout, got %v", err)
	}

	// After the timeout a successful probe closes the breaker.
	now = now.Add(31 * time.Second)
	if err := b.Call(ok); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := New(5, 60*time.Second, WithClock(clock))

	for i := 0; i < 5; i++ {
		b.Call(fail)
	}
	now = now.Add(61 * time.Second)
	if err := b.Call(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe call: expected boom, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after failed probe, got %v", b.State())
	}
	// And it rejects again until another recovery window passes.
	if err := b.Call(ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}
