package breaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected without invoking the
// wrapped function.
var ErrCircuitOpen = errors.New("breaker: circuit open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type Config struct {
	FailureThreshold int           `koanf:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `koanf:"success_threshold" mapstructure:"success_threshold"`
	Timeout          time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          30 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("breaker: failure threshold must be at least 1")
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("breaker: success threshold must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("breaker: timeout must be positive")
	}
	return nil
}

// Stats is a read-only snapshot of breaker counters.
type Stats struct {
	Name                string
	State               State
	ConsecutiveFailures int
	HalfOpenSuccesses   int
	TotalCalls          int64
	TotalFailures       int64
	TotalSuccesses      int64
	LastFailureAt       *time.Time
	LastSuccessAt       *time.Time
}

// Breaker guards calls to one named remote dependency. All call sites for
// that dependency share the same instance, usually via a Registry.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	totalCalls          int64
	totalFailures       int64
	totalSuccesses      int64
	lastFailureAt       time.Time
	lastSuccessAt       time.Time
}

func New(name string, config Config) (*Breaker, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("breaker: name is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Breaker{
		name:   name,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
		state:  StateClosed,
	}, nil
}

// WithClock replaces the time source, for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	if b == nil || now == nil {
		return b
	}
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Execute runs fn through the breaker. When the circuit is open and the
// cooldown has not elapsed, fn is never invoked and ErrCircuitOpen is
// returned; otherwise fn's error is passed through untouched.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if b == nil {
		return fmt.Errorf("breaker: breaker is not configured")
	}
	if fn == nil {
		return fmt.Errorf("breaker: fn is required")
	}
	if err := b.beforeCall(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// ExecuteWithFallback runs fn through the breaker, invoking fallback only
// when the circuit rejects the call. Errors from fn itself are returned
// as-is: the fallback covers an open circuit, not a failing dependency.
func (b *Breaker) ExecuteWithFallback(
	ctx context.Context,
	fn func(ctx context.Context) error,
	fallback func(ctx context.Context) error,
) error {
	err := b.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) && fallback != nil {
		return fallback(ctx)
	}
	return err
}

// AllowingRequests reports whether a call made now would be let through.
// Read-only: it does not advance the state machine.
func (b *Breaker) AllowingRequests() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveStateLocked() != StateOpen
}

// State reports the effective state without side effects: an open breaker
// whose cooldown has elapsed reports half_open even though the transition
// is committed only by the next call.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveStateLocked()
}

// Stats returns a snapshot of counters. Side-effect free and idempotent.
func (b *Breaker) Stats() Stats {
	if b == nil {
		return Stats{State: StateClosed}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := Stats{
		Name:                b.name,
		State:               b.effectiveStateLocked(),
		ConsecutiveFailures: b.consecutiveFailures,
		HalfOpenSuccesses:   b.halfOpenSuccesses,
		TotalCalls:          b.totalCalls,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
	}
	if !b.lastFailureAt.IsZero() {
		at := b.lastFailureAt
		stats.LastFailureAt = &at
	}
	if !b.lastSuccessAt.IsZero() {
		at := b.lastSuccessAt
		stats.LastSuccessAt = &at
	}
	return stats
}

// Reset forces the breaker closed and clears the consecutive counters.
// Lifetime totals are preserved.
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.halfOpenSuccesses = 0
}

// ForceOpen trips the breaker for operational overrides. The cooldown timer
// starts from now.
func (b *Breaker) ForceOpen() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateOpen
	b.halfOpenSuccesses = 0
	b.lastFailureAt = b.now()
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.effectiveStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		b.state = StateHalfOpen
	}
	b.totalCalls++
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSuccesses++
	b.lastSuccessAt = b.now()
	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.halfOpenSuccesses = 0
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalFailures++
	b.lastFailureAt = b.now()
	switch b.state {
	case StateHalfOpen:
		// One bad probe reopens the circuit.
		b.state = StateOpen
		b.halfOpenSuccesses = 0
	default:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// effectiveStateLocked computes the state a call made now would observe:
// open circuits past their cooldown read as half_open.
func (b *Breaker) effectiveStateLocked() State {
	if b.state == StateOpen && !b.lastFailureAt.IsZero() {
		if b.now().Sub(b.lastFailureAt) >= b.config.Timeout {
			return StateHalfOpen
		}
	}
	return b.state
}
