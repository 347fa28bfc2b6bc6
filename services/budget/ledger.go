package budget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veloro-ai/modelrouter/services"
	"go.uber.org/zap"
)

// CeilingFunc looks up a tenant's budget ceiling for the current
// accounting period. Supplied by the multi-tenancy layer.
type CeilingFunc func(tenant string) float64

// Config holds ledger configuration.
type Config struct {
	// DefaultCeiling applies when no ceiling lookup is configured
	DefaultCeiling float64

	// ReservationTTL bounds how long an unsettled reservation may live
	// before the janitor auto-releases it
	ReservationTTL time.Duration

	// JanitorInterval is how often expired reservations are swept
	JanitorInterval time.Duration
}

// DefaultConfig returns sensible ledger defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCeiling:  25.0,
		ReservationTTL:  2 * time.Minute,
		JanitorInterval: 30 * time.Second,
	}
}

// Reservation is a held claim against a tenant's remaining headroom.
// It must be committed or released; otherwise the janitor reclaims it
// after the TTL.
type Reservation struct {
	Token     uuid.UUID
	Tenant    string
	Amount    float64
	CreatedAt time.Time
}

// Record is a read-only snapshot of a tenant's budget position.
type Record struct {
	Tenant    string  `json:"tenant"`
	Committed float64 `json:"committed"`
	Reserved  float64 `json:"reserved"`
	Ceiling   float64 `json:"ceiling"`
}

// Headroom is the spend still available to the tenant.
func (r Record) Headroom() float64 {
	return r.Ceiling - r.Committed - r.Reserved
}

// tenantState is the mutable per-tenant ledger entry. Each entry has
// its own mutex, so contention partitions naturally by tenant.
type tenantState struct {
	mu        sync.Mutex
	committed float64
	reserved  float64
}

// Ledger tracks and reserves spend per tenant, atomically with respect
// to concurrent reservations for the same tenant.
type Ledger struct {
	mu      sync.RWMutex
	tenants map[string]*tenantState

	resMu        sync.Mutex
	reservations map[uuid.UUID]*Reservation

	cfg     Config
	ceiling CeilingFunc
	journal Journal
	logger  *zap.Logger

	now func() time.Time
}

// NewLedger creates a ledger. ceiling may be nil, in which case the
// configured default applies to every tenant. journal may be nil.
func NewLedger(cfg Config, ceiling CeilingFunc, journal Journal, logger *zap.Logger) *Ledger {
	return &Ledger{
		tenants:      make(map[string]*tenantState),
		reservations: make(map[uuid.UUID]*Reservation),
		cfg:          cfg,
		ceiling:      ceiling,
		journal:      journal,
		logger:       logger,
		now:          time.Now,
	}
}

// Reserve holds estimatedCost against the tenant's headroom. Fails with
// a budget error when committed+reserved+estimatedCost would exceed the
// ceiling. Two concurrent reservations can never both succeed against
// headroom sufficient for only one.
func (l *Ledger) Reserve(tenant string, estimatedCost float64) (*Reservation, error) {
	if estimatedCost < 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "estimated cost cannot be negative", nil)
	}

	ceiling := l.ceilingFor(tenant)
	state := l.stateFor(tenant)

	state.mu.Lock()
	if state.committed+state.reserved+estimatedCost > ceiling {
		committed, reserved := state.committed, state.reserved
		state.mu.Unlock()
		return nil, services.NewDomainError(services.ErrorTypeBudget, "tenant budget ceiling reached", nil).
			WithDetail("tenant", tenant).
			WithDetail("ceiling", ceiling).
			WithDetail("committed", committed).
			WithDetail("reserved", reserved).
			WithDetail("requested", estimatedCost)
	}
	state.reserved += estimatedCost
	state.mu.Unlock()

	res := &Reservation{
		Token:     uuid.New(),
		Tenant:    tenant,
		Amount:    estimatedCost,
		CreatedAt: l.now(),
	}

	l.resMu.Lock()
	l.reservations[res.Token] = res
	l.resMu.Unlock()

	return res, nil
}

// Commit finalizes a reservation with the actual cost, which may differ
// from the estimate under token-based billing. The ceiling was enforced
// at reservation time; commit records what was actually spent.
func (l *Ledger) Commit(ctx context.Context, token uuid.UUID, actualCost float64) error {
	res, ok := l.takeReservation(token)
	if !ok {
		return services.ErrUnknownReservation
	}

	state := l.stateFor(res.Tenant)
	state.mu.Lock()
	state.reserved -= res.Amount
	state.committed += actualCost
	state.mu.Unlock()

	if l.journal != nil {
		if err := l.journal.RecordSpend(ctx, res.Tenant, actualCost, l.now()); err != nil {
			// Journal is accounting-only; a write failure never unwinds the commit
			l.logger.Error("spend journal write failed",
				zap.String("tenant", res.Tenant), zap.Error(err))
		}
	}
	return nil
}

// Release cancels a reservation without charging.
func (l *Ledger) Release(token uuid.UUID) error {
	res, ok := l.takeReservation(token)
	if !ok {
		return services.ErrUnknownReservation
	}

	state := l.stateFor(res.Tenant)
	state.mu.Lock()
	state.reserved -= res.Amount
	state.mu.Unlock()
	return nil
}

// SnapshotFor returns the tenant's current budget position.
func (l *Ledger) SnapshotFor(tenant string) Record {
	state := l.stateFor(tenant)
	state.mu.Lock()
	defer state.mu.Unlock()
	return Record{
		Tenant:    tenant,
		Committed: state.committed,
		Reserved:  state.reserved,
		Ceiling:   l.ceilingFor(tenant),
	}
}

// StartJanitor runs the expired-reservation sweeper until ctx is done.
// Reservations older than the TTL are auto-released so abandoned
// requests cannot leak budget.
func (l *Ledger) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.JanitorInterval)
	defer ticker.Stop()

	l.logger.Info("started reservation janitor",
		zap.Duration("interval", l.cfg.JanitorInterval),
		zap.Duration("ttl", l.cfg.ReservationTTL))

	for {
		select {
		case <-ticker.C:
			l.sweepExpired()
		case <-ctx.Done():
			l.logger.Info("stopping reservation janitor")
			return
		}
	}
}

// sweepExpired releases reservations past their TTL.
func (l *Ledger) sweepExpired() {
	cutoff := l.now().Add(-l.cfg.ReservationTTL)

	l.resMu.Lock()
	var expired []*Reservation
	for token, res := range l.reservations {
		if res.CreatedAt.Before(cutoff) {
			expired = append(expired, res)
			delete(l.reservations, token)
		}
	}
	l.resMu.Unlock()

	for _, res := range expired {
		state := l.stateFor(res.Tenant)
		state.mu.Lock()
		state.reserved -= res.Amount
		state.mu.Unlock()
		l.logger.Warn("auto-released expired reservation",
			zap.String("tenant", res.Tenant),
			zap.String("token", res.Token.String()),
			zap.Float64("amount", res.Amount))
	}
}

func (l *Ledger) takeReservation(token uuid.UUID) (*Reservation, bool) {
	l.resMu.Lock()
	defer l.resMu.Unlock()
	res, ok := l.reservations[token]
	if ok {
		delete(l.reservations, token)
	}
	return res, ok
}

func (l *Ledger) ceilingFor(tenant string) float64 {
	if l.ceiling != nil {
		return l.ceiling(tenant)
	}
	return l.cfg.DefaultCeiling
}

func (l *Ledger) stateFor(tenant string) *tenantState {
	l.mu.RLock()
	state, ok := l.tenants[tenant]
	l.mu.RUnlock()
	if ok {
		return state
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok := l.tenants[tenant]; ok {
		return state
	}
	state = &tenantState{}
	l.tenants[tenant] = state
	return state
}
