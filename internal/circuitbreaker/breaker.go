// Package circuitbreaker stops the bridge from handing out new deposit addresses
// after a run of failed swaps.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the circuit is open
var ErrOpen = errors.New("circuit breaker open: bridge temporarily unavailable")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new swaps allowed
	StateHalfOpen              // Probing whether swaps succeed again
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Thresholds defines when the breaker trips and how it recovers
type Thresholds struct {
	// Consecutive failures that open the circuit
	FailureThreshold int `json:"failure_threshold"`

	// Successes in half-open state needed to close the circuit again
	SuccessThreshold int `json:"success_threshold"`
}

// Snapshot describes the breaker for status endpoints
type Snapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastTrip            time.Time `json:"lastTrip,omitempty"`
	LastReason          string    `json:"lastReason,omitempty"`
	ResetDelay          string    `json:"resetDelay"`
}

// CircuitBreaker counts consecutive failures of an upstream and refuses work
// while the upstream looks broken.
type CircuitBreaker struct {
	thresholds Thresholds

	// Current state of the circuit breaker (Closed, Open, HalfOpen)
	state State

	// Timestamp and cause of the last trip
	lastTrip   time.Time
	lastReason string

	// Duration before a half-open probe is allowed
	resetDelay time.Duration

	mu sync.RWMutex

	failures     int
	successCount int

	now func() time.Time

	// Event callback for monitoring/alerting
	onTripCallback func(reason string)
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	if t.FailureThreshold <= 0 {
		t.FailureThreshold = 3
	}
	if t.SuccessThreshold <= 0 {
		t.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		thresholds: t,
		state:      StateClosed,
		resetDelay: 5 * time.Minute,
		now:        time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithClock replaces the time source, used by tests
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Allow reports whether a new operation may start. An open circuit moves to
// half-open once the reset delay has passed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
		return fmt.Errorf("%w (%s)", ErrOpen, cb.lastReason)
	}

	cb.state = StateHalfOpen
	cb.successCount = 0
	logrus.Info("Circuit breaker half-open: probing bridge recovery")
	return nil
}

// RecordSuccess resets the failure count and closes a half-open circuit
// after enough successes.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.thresholds.SuccessThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: bridge has recovered")
		}
	}
}

// RecordFailure counts a failure. Any failure while half-open trips the circuit again.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip(fmt.Sprintf("failure while half-open: %s", reason))
	case cb.state == StateClosed && cb.failures >= cb.thresholds.FailureThreshold:
		cb.trip(fmt.Sprintf("%d consecutive failures, last: %s", cb.failures, reason))
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Snapshot returns the breaker state for reporting
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Snapshot{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
		LastTrip:            cb.lastTrip,
		LastReason:          cb.lastReason,
		ResetDelay:          cb.resetDelay.String(),
	}
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// trip must be called with cb.mu held
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.lastReason = reason
	cb.successCount = 0
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}
