package semantic

import (
	"context"
	"sync"
	"time"

	"codegraph/internal/errs"
	"codegraph/internal/types"
)

// CircuitBreakerConfig controls the failure/recovery thresholds.
type CircuitBreakerConfig struct {
	FailureWindow   time.Duration // sliding window over which failures are counted
	FailureThreshold int          // failures within FailureWindow that trip the breaker
	OpenTimeout     time.Duration // time spent OPEN before probing HALF_OPEN
	SuccessesToClose int          // consecutive HALF_OPEN successes needed to close
}

// DefaultCircuitBreakerConfig matches spec §4.7's embedding-provider circuit
// breaker: 5 failures in a 60s sliding window opens the circuit, 30s later
// it probes HALF_OPEN, and 3 consecutive successes close it again.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureWindow:    60 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		SuccessesToClose: 3,
	}
}

// CircuitBreaker guards calls to an embedding provider. Unlike a simple
// consecutive-failure counter, it trips on failure density within a sliding
// window, so a handful of failures scattered across an hour never opens
// the circuit the way a burst of 5 in a few seconds does.
type CircuitBreaker struct {
	mu               sync.Mutex
	cfg              CircuitBreakerConfig
	state            types.CircuitState
	failureTimestamps []time.Time
	successesInHalfOpen int
	openedAt         time.Time
}

// NewCircuitBreaker builds a breaker starting CLOSED.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureWindow <= 0 {
		cfg = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{cfg: cfg, state: types.CircuitClosed}
}

// State returns the breaker's current state, probing for an OPEN->HALF_OPEN
// transition if the open timeout has elapsed.
func (cb *CircuitBreaker) State() types.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == types.CircuitOpen && time.Since(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.state = types.CircuitHalfOpen
		cb.successesInHalfOpen = 0
	}
}

// Execute runs fn under the breaker's protection, rejecting immediately
// when OPEN.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	cb.maybeHalfOpen()
	if cb.state == types.CircuitOpen {
		cb.mu.Unlock()
		return errs.New(errs.KindSemanticProvider, "circuit breaker open").WithRetryAfter(int(cb.cfg.OpenTimeout.Milliseconds()))
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) recordFailure() {
	now := time.Now()
	if cb.state == types.CircuitHalfOpen {
		cb.state = types.CircuitOpen
		cb.openedAt = now
		cb.failureTimestamps = nil
		return
	}

	cb.failureTimestamps = append(cb.failureTimestamps, now)
	cb.failureTimestamps = pruneBefore(cb.failureTimestamps, now.Add(-cb.cfg.FailureWindow))
	if len(cb.failureTimestamps) >= cb.cfg.FailureThreshold {
		cb.state = types.CircuitOpen
		cb.openedAt = now
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case types.CircuitHalfOpen:
		cb.successesInHalfOpen++
		if cb.successesInHalfOpen >= cb.cfg.SuccessesToClose {
			cb.state = types.CircuitClosed
			cb.failureTimestamps = nil
			cb.successesInHalfOpen = 0
		}
	case types.CircuitClosed:
		cb.failureTimestamps = pruneBefore(cb.failureTimestamps, time.Now().Add(-cb.cfg.FailureWindow))
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
