// Package resilience protects inference collaborators with circuit breakers.
//
// A [Breaker] is a three-state circuit breaker (closed → open → half-open).
// [WrapTranscriber] and [WrapClassifier] compose a breaker with a provider so
// that a collaborator that keeps failing is bypassed quickly instead of
// holding every segment hostage to its timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is open and the cooldown has not yet
// elapsed. Callers should surface it as an inference failure.
var ErrOpen = errors.New("circuit breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed is the normal state: calls are forwarded and failures counted.
	Closed State = iota

	// Open rejects calls with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a limited number of probe calls through. Success closes
	// the breaker; any failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero-value fields get defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state before the breaker trips. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeCount is how many consecutive probe calls must succeed in the
	// half-open state before the breaker closes. Default: 2.
	ProbeCount int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	probes    int

	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	probeSuccess int
}

// NewBreaker creates a [Breaker] from cfg, applying defaults for zero-value
// fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeCount <= 0 {
		cfg.ProbeCount = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		probes:    cfg.ProbeCount,
	}
}

// Do runs fn if the breaker permits it, recording the outcome. In the open
// state it returns [ErrOpen] without calling fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

// allow decides whether a call may proceed, transitioning open → half-open
// when the cooldown has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probeSuccess = 0
		slog.Info("circuit breaker probing", "name", b.name)
	}
	return nil
}

// record updates breaker state after a call completes.
func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		if ok {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}

	case HalfOpen:
		if !ok {
			b.trip()
			return
		}
		b.probeSuccess++
		if b.probeSuccess >= b.probes {
			b.state = Closed
			b.failures = 0
			slog.Info("circuit breaker closed", "name", b.name)
		}
	}
}

// trip moves the breaker to the open state. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	slog.Warn("circuit breaker opened",
		"name", b.name,
		"consecutive_failures", b.failures)
}

// State reports the current state. An open breaker whose cooldown has
// elapsed reports [HalfOpen]; the actual transition happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
	b.probeSuccess = 0
}
