package router

import (
	"fmt"
	"sort"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"github.com/veloro-ai/modelrouter/services/registry"
	"go.uber.org/zap"
)

// Weights are the scoring coefficients for one complexity bucket.
// score = CostWeight*costPenalty + LatencyWeight*latencyPenalty - QualityWeight*qualityBonus
type Weights struct {
	CostWeight    float64 `json:"cost_weight"`
	LatencyWeight float64 `json:"latency_weight"`
	QualityWeight float64 `json:"quality_weight"`
}

// Config holds router configuration. Weights per bucket are
// configuration, not hard-coded behavior: operators tune how strongly
// cheap models are favored for simple traffic.
type Config struct {
	// WeightsFor maps each complexity bucket to its scoring weights
	WeightsFor map[models.Complexity]Weights

	// MaxChainLength bounds the candidate chain (primary + fallbacks)
	MaxChainLength int
}

// DefaultConfig returns weights that favor cost for trivial/simple
// requests and quality for complex ones.
func DefaultConfig() Config {
	return Config{
		WeightsFor: map[models.Complexity]Weights{
			models.ComplexityTrivial:  {CostWeight: 1.0, LatencyWeight: 0.5, QualityWeight: 0.05},
			models.ComplexitySimple:   {CostWeight: 0.8, LatencyWeight: 0.4, QualityWeight: 0.15},
			models.ComplexityModerate: {CostWeight: 0.4, LatencyWeight: 0.3, QualityWeight: 0.5},
			models.ComplexityComplex:  {CostWeight: 0.1, LatencyWeight: 0.1, QualityWeight: 1.0},
		},
		MaxChainLength: 3,
	}
}

// Router produces a ranked candidate chain for a request profile.
// Given identical profile, registry snapshot, and circuit/budget
// snapshots, the chain ordering is identical: scoring and tie-breaking
// are fully deterministic.
type Router struct {
	cfg      Config
	registry *registry.Registry
	circuits *breaker.Group
	logger   *zap.Logger
}

// New creates a router over the registry and circuit group.
func New(cfg Config, reg *registry.Registry, circuits *breaker.Group, logger *zap.Logger) *Router {
	return &Router{
		cfg:      cfg,
		registry: reg,
		circuits: circuits,
		logger:   logger,
	}
}

// scored pairs a descriptor with its score and registration position.
type scored struct {
	desc     models.ModelDescriptor
	score    float64
	cost     float64
	regOrder int
}

// Route filters and ranks the catalog for the profile against the
// tenant's budget snapshot. Fails with a no-available-model error when
// the filtered set is empty; the error carries the full rejection
// trace so the failure is explainable.
func (r *Router) Route(profile *models.RequestProfile, tenantBudget budget.Record) (*models.CandidateChain, error) {
	snapshot := r.registry.Snapshot()

	weights, ok := r.cfg.WeightsFor[profile.Complexity]
	if !ok {
		weights = r.cfg.WeightsFor[models.ComplexityModerate]
	}

	var (
		candidates []scored
		rejected   []models.RejectedCandidate
	)

	for i, desc := range snapshot {
		// Step 1: capability and context-length filter
		if !desc.HasCapabilities(profile.RequiredCapabilities) {
			rejected = append(rejected, models.RejectedCandidate{
				ModelID: desc.ID, Reason: "missing required capability",
			})
			continue
		}
		if desc.MaxContextTokens < profile.EstimatedTotalTokens() {
			rejected = append(rejected, models.RejectedCandidate{
				ModelID: desc.ID,
				Reason:  fmt.Sprintf("context window %d below estimated %d tokens", desc.MaxContextTokens, profile.EstimatedTotalTokens()),
			})
			continue
		}

		// Step 2: circuit filter; an Open model never enters a chain
		if r.circuits.State(desc.ID) == breaker.StateOpen {
			rejected = append(rejected, models.RejectedCandidate{
				ModelID: desc.ID, Reason: "circuit open",
			})
			continue
		}

		// Step 3: budget filter against the tenant's remaining headroom
		minCost := desc.Cost(profile.EstimatedInputTokens, profile.EstimatedOutputTokens)
		if minCost > tenantBudget.Headroom() {
			rejected = append(rejected, models.RejectedCandidate{
				ModelID: desc.ID,
				Reason:  fmt.Sprintf("estimated cost %.6f exceeds remaining budget %.6f", minCost, tenantBudget.Headroom()),
			})
			continue
		}

		// Step 4: score
		candidates = append(candidates, scored{
			desc:     desc,
			score:    score(weights, &desc, minCost),
			cost:     minCost,
			regOrder: i,
		})
	}

	if len(candidates) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeNoModel,
			"no model satisfies the request", nil).
			WithDetail("tenant", profile.Tenant).
			WithDetail("complexity", string(profile.Complexity)).
			WithDetail("rejected", rejected)
	}

	// Step 5: deterministic ordering — score, then cost, then registration order
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if a.cost != b.cost {
			return a.cost < b.cost
		}
		return a.regOrder < b.regOrder
	})

	// Step 6: bound the chain
	limit := r.cfg.MaxChainLength
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	chain := &models.CandidateChain{
		Candidates: make([]models.Candidate, 0, limit),
		Rejected:   rejected,
	}
	for _, c := range candidates[:limit] {
		chain.Candidates = append(chain.Candidates, models.Candidate{
			Descriptor:    c.desc,
			Score:         c.score,
			EstimatedCost: c.cost,
		})
	}
	chain.Reasoning = reasoning(profile, chain)

	r.logger.Debug("candidate chain built",
		zap.String("tenant", profile.Tenant),
		zap.String("complexity", string(profile.Complexity)),
		zap.Strings("chain", chain.ModelIDs()),
		zap.Int("rejected", len(rejected)))

	return chain, nil
}

// Decision wraps a chain into the caller-facing routing artifact.
func Decision(profile *models.RequestProfile, chain *models.CandidateChain) *models.RoutingDecision {
	primary := chain.Primary()
	return &models.RoutingDecision{
		SelectedModel: primary.Descriptor,
		Chain:         chain,
		Profile:       profile,
		EstimatedCost: primary.EstimatedCost,
		Reasoning:     chain.Reasoning,
	}
}

// score computes the multi-objective score; lower is better.
func score(w Weights, desc *models.ModelDescriptor, estCost float64) float64 {
	// Penalties are scaled so typical values land in comparable ranges:
	// cost in cents, latency in seconds, quality as its tier ordinal.
	costPenalty := estCost * 100
	latencyPenalty := desc.LatencyP50.Seconds()
	qualityBonus := float64(desc.QualityTier)

	return w.CostWeight*costPenalty + w.LatencyWeight*latencyPenalty - w.QualityWeight*qualityBonus
}

// reasoning produces the human-readable rationale in the decision.
func reasoning(profile *models.RequestProfile, chain *models.CandidateChain) []string {
	primary := chain.Primary()
	reasons := []string{}

	switch profile.Complexity {
	case models.ComplexityTrivial, models.ComplexitySimple:
		reasons = append(reasons, fmt.Sprintf(
			"query is %s, favoring cost-effective model (%s)", profile.Complexity, primary.Descriptor.DisplayName))
	case models.ComplexityComplex:
		reasons = append(reasons, fmt.Sprintf(
			"query is complex, favoring high-quality model (%s)", primary.Descriptor.DisplayName))
	default:
		reasons = append(reasons, fmt.Sprintf(
			"query has moderate complexity, using balanced model (%s)", primary.Descriptor.DisplayName))
	}

	if profile.Intent == models.IntentTechnical {
		reasons = append(reasons, "technical intent detected")
	}
	if profile.Score >= 0.8 {
		reasons = append(reasons, fmt.Sprintf("high reasoning score (%.2f)", profile.Score))
	}

	reasons = append(reasons, fmt.Sprintf("estimated cost $%.6f", primary.EstimatedCost))
	if chain.Len() > 1 {
		reasons = append(reasons, fmt.Sprintf("%d fallback candidate(s) ranked behind primary", chain.Len()-1))
	}
	return reasons
}
