package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of a per-model circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds circuit breaker thresholds.
type Config struct {
	// FailureThreshold is the number of failures within Window that opens the circuit
	FailureThreshold int

	// Window is the rolling window over which failures are counted
	Window time.Duration

	// Cooldown is the initial open duration before a half-open trial
	Cooldown time.Duration

	// MaxCooldown caps the exponential cooldown growth on repeated trial failures
	MaxCooldown time.Duration
}

// DefaultConfig returns sensible circuit breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           30 * time.Second,
		Cooldown:         10 * time.Second,
		MaxCooldown:      5 * time.Minute,
	}
}

// Breaker is the circuit state machine for a single model. All state
// is guarded by one mutex per breaker, so updates are linearizable per
// model without any global lock.
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	state State

	// failure timestamps within the rolling window
	failures []time.Time

	// cooldown currently in effect; grows exponentially on half-open failures
	cooldown time.Duration

	// deadline after which an open circuit permits a trial
	openUntil time.Time

	// whether the single half-open trial is in flight
	trialInFlight bool

	// timestamp of the last state transition
	lastTransition time.Time

	now func() time.Time
}

// NewBreaker creates a closed breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		cfg:            cfg,
		state:          StateClosed,
		cooldown:       cfg.Cooldown,
		lastTransition: time.Now(),
		now:            time.Now,
	}
}

// Allow reports whether a call may be attempted right now. An Open
// circuit whose cooldown has elapsed transitions to HalfOpen and
// permits exactly one trial call; concurrent callers are refused until
// that trial concludes.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess records a completed successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// Trial succeeded: close and reset counters and backoff
		b.trialInFlight = false
		b.failures = nil
		b.cooldown = b.cfg.Cooldown
		b.transition(StateClosed)
	case StateClosed:
		// Successes age failures out naturally via the window; nothing to do
	}
}

// RecordFailure records a completed failed call and reports whether
// this exact call transitioned the circuit to Open. Cancelled calls
// must not be recorded; they did not conclude.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case StateHalfOpen:
		// Trial failed: reopen with extended, capped cooldown
		b.trialInFlight = false
		b.cooldown *= 2
		if b.cooldown > b.cfg.MaxCooldown {
			b.cooldown = b.cfg.MaxCooldown
		}
		b.openUntil = now.Add(b.cooldown)
		b.transition(StateOpen)
		return true
	case StateClosed:
		b.failures = append(b.failures, now)
		b.prune(now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.openUntil = now.Add(b.cooldown)
			b.transition(StateOpen)
			return true
		}
	}
	return false
}

// CancelTrial frees the half-open trial slot for a call that was
// cancelled before completion. No counters are touched; the cancelled
// call is excluded from the failure-rate window.
func (b *Breaker) CancelTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// State returns the current state, applying the Open→HalfOpen
// transition check so introspection never reports a stale Open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

// LastTransition returns when the breaker last changed state.
func (b *Breaker) LastTransition() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTransition
}

func (b *Breaker) transition(next State) {
	b.state = next
	b.lastTransition = b.now()
}

// prune drops failures older than the rolling window.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// Group manages one breaker per model. Breakers are created lazily on
// first use so newly registered models start Closed.
type Group struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
	logger   *zap.Logger
}

// NewGroup creates a breaker group with shared config.
func NewGroup(cfg Config, logger *zap.Logger) *Group {
	return &Group{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		logger:   logger,
	}
}

// For returns the breaker for a model, creating it if needed.
func (g *Group) For(modelID string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[modelID]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[modelID]; ok {
		return b
	}
	b = NewBreaker(g.cfg)
	g.breakers[modelID] = b
	return b
}

// State returns the current state for a model. Models without recorded
// traffic are Closed.
func (g *Group) State(modelID string) State {
	g.mu.RLock()
	b, ok := g.breakers[modelID]
	g.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// RecordSuccess records a success against a model's breaker.
func (g *Group) RecordSuccess(modelID string) {
	g.For(modelID).RecordSuccess()
}

// RecordFailure records a failure against a model's breaker, logging
// the transition when this failure is the one that opened the circuit.
func (g *Group) RecordFailure(modelID string) {
	b := g.For(modelID)
	if b.RecordFailure() {
		g.logger.Warn("circuit opened",
			zap.String("model_id", modelID),
			zap.Time("until", b.openUntilSnapshot()))
	}
}

// States snapshots all known breaker states for introspection.
func (g *Group) States() map[string]State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]State, len(g.breakers))
	for id, b := range g.breakers {
		out[id] = b.State()
	}
	return out
}

func (b *Breaker) openUntilSnapshot() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openUntil
}
