package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"github.com/veloro-ai/modelrouter/services/registry"
	"go.uber.org/zap"
)

func testCatalog() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{
			ID:               "local-cheap",
			DisplayName:      "Local Cheap",
			Provider:         models.ProviderLocal,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityStreaming},
			LatencyP50:       300 * time.Millisecond,
			MaxContextTokens: 8192,
			QualityTier:      1,
		},
		{
			ID:               "mid",
			DisplayName:      "Mid",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityStreaming},
			InputCostPer1K:   0.001,
			OutputCostPer1K:  0.002,
			LatencyP50:       800 * time.Millisecond,
			MaxContextTokens: 16385,
			QualityTier:      2,
		},
		{
			ID:               "premium",
			DisplayName:      "Premium",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityVision, models.CapabilityToolUse, models.CapabilityStreaming},
			InputCostPer1K:   0.01,
			OutputCostPer1K:  0.03,
			LatencyP50:       2 * time.Second,
			MaxContextTokens: 128000,
			QualityTier:      5,
		},
	}
}

func newTestRouter(t *testing.T) (*Router, *breaker.Group) {
	t.Helper()
	logger := zap.NewNop()
	circuits := breaker.NewGroup(breaker.DefaultConfig(), logger)
	reg := registry.New(circuits, logger)
	require.NoError(t, reg.Reload(testCatalog()))
	return New(DefaultConfig(), reg, circuits, logger), circuits
}

func profile(complexity models.Complexity, in, out int) *models.RequestProfile {
	return &models.RequestProfile{
		Complexity:            complexity,
		Intent:                models.IntentInformational,
		EstimatedInputTokens:  in,
		EstimatedOutputTokens: out,
		RequiredCapabilities:  []models.Capability{models.CapabilityText},
		Tenant:                "acme",
	}
}

func openBudget() budget.Record {
	return budget.Record{Tenant: "acme", Ceiling: 100}
}

func TestRouteComplexityBias(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("trivial requests go to the cheap local model", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexityTrivial, 5, 50), openBudget())
		require.NoError(t, err)
		assert.Equal(t, "local-cheap", chain.Primary().Descriptor.ID)
	})

	t.Run("complex requests go to the top tier", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexityComplex, 200, 400), openBudget())
		require.NoError(t, err)
		assert.Equal(t, "premium", chain.Primary().Descriptor.ID)
	})

	t.Run("unknown bucket falls back to moderate weights", func(t *testing.T) {
		chain, err := r.Route(profile(models.Complexity("mystery"), 50, 150), openBudget())
		require.NoError(t, err)
		assert.NotEmpty(t, chain.Candidates)
	})
}

func TestRouteFilters(t *testing.T) {
	r, circuits := newTestRouter(t)

	t.Run("capability filter", func(t *testing.T) {
		p := profile(models.ComplexitySimple, 10, 50)
		p.RequiredCapabilities = []models.Capability{models.CapabilityText, models.CapabilityVision}

		chain, err := r.Route(p, openBudget())
		require.NoError(t, err)
		require.Len(t, chain.Candidates, 1)
		assert.Equal(t, "premium", chain.Primary().Descriptor.ID)
		assert.Len(t, chain.Rejected, 2)
	})

	t.Run("context window filter", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexitySimple, 20000, 400), openBudget())
		require.NoError(t, err)
		for _, c := range chain.Candidates {
			assert.GreaterOrEqual(t, c.Descriptor.MaxContextTokens, 20400)
		}
		assert.NotEmpty(t, chain.Rejected)
	})

	t.Run("open circuits never enter a chain", func(t *testing.T) {
		for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
			circuits.RecordFailure("premium")
		}

		chain, err := r.Route(profile(models.ComplexityComplex, 200, 400), openBudget())
		require.NoError(t, err)
		for _, c := range chain.Candidates {
			assert.NotEqual(t, "premium", c.Descriptor.ID)
		}

		var found bool
		for _, rej := range chain.Rejected {
			if rej.ModelID == "premium" {
				found = true
				assert.Equal(t, "circuit open", rej.Reason)
			}
		}
		assert.True(t, found)
	})

	t.Run("budget filter excludes unaffordable models", func(t *testing.T) {
		r, _ := newTestRouter(t)

		// premium would cost 0.014 for this profile
		tight := budget.Record{Tenant: "acme", Ceiling: 0.01}
		chain, err := r.Route(profile(models.ComplexityComplex, 200, 400), tight)
		require.NoError(t, err)
		for _, c := range chain.Candidates {
			assert.NotEqual(t, "premium", c.Descriptor.ID)
		}
	})
}

func TestRouteChainShape(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("chain is bounded and has no duplicates", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexityModerate, 50, 150), openBudget())
		require.NoError(t, err)
		assert.LessOrEqual(t, chain.Len(), DefaultConfig().MaxChainLength)

		seen := make(map[string]bool)
		for _, c := range chain.Candidates {
			assert.False(t, seen[c.Descriptor.ID], "duplicate %s", c.Descriptor.ID)
			seen[c.Descriptor.ID] = true
		}
	})

	t.Run("candidates are ordered by ascending score", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexityComplex, 200, 400), openBudget())
		require.NoError(t, err)
		for i := 1; i < chain.Len(); i++ {
			assert.LessOrEqual(t, chain.Candidates[i-1].Score, chain.Candidates[i].Score)
		}
	})

	t.Run("reasoning names the primary", func(t *testing.T) {
		chain, err := r.Route(profile(models.ComplexityComplex, 200, 400), openBudget())
		require.NoError(t, err)
		require.NotEmpty(t, chain.Reasoning)
		assert.Contains(t, chain.Reasoning[0], chain.Primary().Descriptor.DisplayName)
	})
}

func TestRouteDeterminism(t *testing.T) {
	r, _ := newTestRouter(t)
	p := profile(models.ComplexityModerate, 50, 150)

	first, err := r.Route(p, openBudget())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := r.Route(p, openBudget())
		require.NoError(t, err)
		assert.Equal(t, first.ModelIDs(), again.ModelIDs())
	}
}

func TestRouteTieBreaking(t *testing.T) {
	logger := zap.NewNop()
	circuits := breaker.NewGroup(breaker.DefaultConfig(), logger)
	reg := registry.New(circuits, logger)

	twin := func(id string) models.ModelDescriptor {
		return models.ModelDescriptor{
			ID:               id,
			DisplayName:      id,
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText},
			InputCostPer1K:   0.001,
			OutputCostPer1K:  0.001,
			LatencyP50:       time.Second,
			MaxContextTokens: 8192,
			QualityTier:      2,
		}
	}
	require.NoError(t, reg.Reload([]models.ModelDescriptor{twin("zeta"), twin("alpha")}))

	r := New(DefaultConfig(), reg, circuits, logger)
	chain, err := r.Route(profile(models.ComplexitySimple, 10, 50), openBudget())
	require.NoError(t, err)

	// Identical score and cost: registration order decides
	require.Equal(t, 2, chain.Len())
	assert.Equal(t, "zeta", chain.Candidates[0].Descriptor.ID)
	assert.Equal(t, "alpha", chain.Candidates[1].Descriptor.ID)
}

func TestRouteNoAvailableModel(t *testing.T) {
	r, _ := newTestRouter(t)

	p := profile(models.ComplexitySimple, 10, 50)
	p.RequiredCapabilities = []models.Capability{models.CapabilityText, models.CapabilityVision, models.CapabilityToolUse}

	// Premium is the only candidate left, and it cannot be afforded
	_, err := r.Route(p, budget.Record{Tenant: "acme", Ceiling: 0})
	require.Error(t, err)
	assert.True(t, services.IsNoModelError(err))

	details := services.GetErrorDetails(err)
	require.NotNil(t, details)
	rejected, ok := details["rejected"].([]models.RejectedCandidate)
	require.True(t, ok)
	assert.Len(t, rejected, 3)
}

func TestDecision(t *testing.T) {
	r, _ := newTestRouter(t)

	p := profile(models.ComplexityComplex, 200, 400)
	chain, err := r.Route(p, openBudget())
	require.NoError(t, err)

	decision := Decision(p, chain)
	assert.Equal(t, chain.Primary().Descriptor, decision.SelectedModel)
	assert.Equal(t, chain.Primary().EstimatedCost, decision.EstimatedCost)
	assert.Equal(t, p, decision.Profile)
	assert.NotEmpty(t, decision.Reasoning)
}
