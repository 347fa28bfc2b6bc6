package registry

import (
	"sync"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"go.uber.org/zap"
)

// Filter narrows a List call.
type Filter struct {
	// RequiredCapabilities the descriptor must be a superset of
	RequiredCapabilities []models.Capability

	// MinContextTokens excludes models with smaller context windows
	MinContextTokens int
}

// Registry is the catalog of backend descriptors. Mutation is rare
// (startup and explicit reload) and serialized; reads work against an
// immutable snapshot slice that is swapped atomically, so routing never
// blocks on registration and never observes a half-applied reload.
type Registry struct {
	mu sync.RWMutex

	// snapshot in registration order; replaced wholesale, never mutated
	snapshot []models.ModelDescriptor

	// index of id -> position in snapshot
	index map[string]int

	health *breaker.Group
	logger *zap.Logger
}

// New creates an empty registry. The breaker group backs Health reads;
// it is owned by the executor side and only read here.
func New(health *breaker.Group, logger *zap.Logger) *Registry {
	return &Registry{
		index:  make(map[string]int),
		health: health,
		logger: logger,
	}
}

// Register adds or replaces a descriptor by identifier. Re-registering
// an id with a different capability set is a configuration error and
// is surfaced at load time, not at request time.
func (r *Registry) Register(desc models.ModelDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pos, exists := r.index[desc.ID]; exists {
		existing := r.snapshot[pos]
		if !existing.SameCapabilities(&desc) {
			return services.NewDomainError(services.ErrorTypeConfig,
				"duplicate model id with different capabilities", nil).
				WithDetail("model_id", desc.ID)
		}
		// Same capabilities: replace in place, preserving registration order
		next := make([]models.ModelDescriptor, len(r.snapshot))
		copy(next, r.snapshot)
		next[pos] = desc
		r.snapshot = next
		r.logger.Info("model re-registered", zap.String("model_id", desc.ID))
		return nil
	}

	next := make([]models.ModelDescriptor, len(r.snapshot), len(r.snapshot)+1)
	copy(next, r.snapshot)
	next = append(next, desc)
	r.index[desc.ID] = len(next) - 1
	r.snapshot = next

	r.logger.Info("model registered",
		zap.String("model_id", desc.ID),
		zap.String("provider", string(desc.Provider)),
		zap.Int("quality_tier", desc.QualityTier))
	return nil
}

// Reload atomically replaces the whole catalog. Reads in flight keep
// their old snapshot; new reads observe the full new catalog.
func (r *Registry) Reload(descriptors []models.ModelDescriptor) error {
	next := make([]models.ModelDescriptor, 0, len(descriptors))
	index := make(map[string]int, len(descriptors))
	for _, desc := range descriptors {
		if pos, exists := index[desc.ID]; exists {
			if !next[pos].SameCapabilities(&desc) {
				return services.NewDomainError(services.ErrorTypeConfig,
					"duplicate model id with different capabilities", nil).
					WithDetail("model_id", desc.ID)
			}
			next[pos] = desc
			continue
		}
		index[desc.ID] = len(next)
		next = append(next, desc)
	}

	r.mu.Lock()
	r.snapshot = next
	r.index = index
	r.mu.Unlock()

	r.logger.Info("model catalog reloaded", zap.Int("total_models", len(next)))
	return nil
}

// Snapshot returns the full catalog in registration order. The returned
// slice is the immutable snapshot; callers must not modify it.
func (r *Registry) Snapshot() []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// List returns descriptors matching the filter, in registration order.
func (r *Registry) List(filter Filter) []models.ModelDescriptor {
	snapshot := r.Snapshot()

	out := make([]models.ModelDescriptor, 0, len(snapshot))
	for _, desc := range snapshot {
		if !desc.HasCapabilities(filter.RequiredCapabilities) {
			continue
		}
		if filter.MinContextTokens > 0 && desc.MaxContextTokens < filter.MinContextTokens {
			continue
		}
		out = append(out, desc)
	}
	return out
}

// Get returns a descriptor by id.
func (r *Registry) Get(id string) (models.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[id]
	if !ok {
		return models.ModelDescriptor{}, false
	}
	return r.snapshot[pos], true
}

// Health exposes the current circuit state for a model.
func (r *Registry) Health(id string) breaker.State {
	return r.health.State(id)
}

// Count returns the number of registered descriptors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshot)
}
