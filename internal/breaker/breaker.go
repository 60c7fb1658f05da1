// Package breaker implements a three-state circuit breaker used to
// guard the database connectivity check at the start of each scrape
// session.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the current position of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned by Call when the breaker rejects the request
// without invoking the wrapped function.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker counts consecutive failures and short-circuits calls after
// the threshold is reached. After the recovery timeout a single probe
// call is allowed through; its outcome decides whether the breaker
// closes again or reopens.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New returns a closed breaker. threshold <= 0 defaults to 5 and
// recovery <= 0 defaults to 60s.
func New(threshold int, recovery time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 60 * time.Second
	}
	b := &Breaker{
		state:            StateClosed,
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Call invokes fn under the breaker's policy. While open and before the
// recovery timeout has elapsed it returns ErrOpen without calling fn.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		// A failed half-open probe reopens immediately, regardless of
		// the counter.
		if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
		return err
	}
	b.failures = 0
	b.state = StateClosed
	return nil
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures reports the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
