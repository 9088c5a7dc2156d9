// Package resilience keeps the voice pipeline running when a speech or
// translation provider degrades.
//
// [CircuitBreaker] guards one provider: repeated failures trip it open so the
// pipeline stops paying the timeout for a dead endpoint, and a half-open probe
// phase lets the provider earn its way back. [FallbackGroup] chains breakers
// over a primary and its fallbacks, so an utterance is served by the first
// healthy provider in line.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call to the provider.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses. Entered after too many consecutive provider failures.
	StateOpen

	// StateHalfOpen admits a bounded number of probe calls after the
	// cooldown. Enough successes close the breaker; one failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes one provider's breaker.
type CircuitBreakerConfig struct {
	// Name is the provider name, used in log messages.
	Name string

	// MaxFailures is the consecutive-failure count that trips the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is the open-state cooldown before probing resumes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls admitted while half-open, and is
	// also the success count required to close again. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker (closed, open, half-open) guarding
// one provider endpoint.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failures   int
	trippedAt  time.Time
	probeCalls int
}

// NewCircuitBreaker builds a breaker from cfg, filling zero fields with the
// documented defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute calls fn when the breaker admits it, and settles the breaker on
// fn's result. While open it returns [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probing, ok := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()
	cb.settle(err, probing)
	return err
}

// allow decides whether the next call may go through. The second return is
// false when the breaker is open; the first is true when the admitted call is
// a half-open probe.
func (cb *CircuitBreaker) allow() (probing, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.trippedAt) < cb.resetTimeout {
			return false, false
		}
		// Cooldown over: start probing.
		cb.state = StateHalfOpen
		cb.probeCalls = 0
		slog.Info("provider breaker half-open, probing", "provider", cb.name)

	case StateHalfOpen:
		if cb.probeCalls >= cb.halfOpenMax {
			// Probe budget spent, outcome still pending.
			return false, false
		}
	}

	if cb.state == StateHalfOpen {
		cb.probeCalls++
		return true, true
	}
	return false, true
}

// settle folds one call result into the breaker state.
func (cb *CircuitBreaker) settle(err error, probing bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err != nil && probing:
		// A failed probe re-opens immediately.
		cb.trippedAt = time.Now()
		cb.failures = cb.maxFailures
		cb.state = StateOpen
		slog.Warn("provider breaker re-opened, probe failed", "provider", cb.name)

	case err != nil:
		cb.trippedAt = time.Now()
		cb.failures++
		if cb.failures >= cb.maxFailures && cb.state == StateClosed {
			cb.state = StateOpen
			slog.Warn("provider breaker opened",
				"provider", cb.name,
				"consecutive_failures", cb.failures)
		}

	case probing:
		if cb.probeCalls >= cb.halfOpenMax {
			cb.reset()
			slog.Info("provider breaker closed, probes healthy", "provider", cb.name)
		}

	default:
		cb.failures = 0
	}
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports half-open; the transition itself happens on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.trippedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
	slog.Info("provider breaker reset", "provider", cb.name)
}

func (cb *CircuitBreaker) reset() {
	cb.state = StateClosed
	cb.failures = 0
	cb.probeCalls = 0
}
