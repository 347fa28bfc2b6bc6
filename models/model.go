package models

import "time"

// Capability represents a feature a backend model can serve.
type Capability string

const (
	CapabilityText      Capability = "text"
	CapabilityVision    Capability = "vision"
	CapabilityToolUse   Capability = "tool_use"
	CapabilityStreaming Capability = "streaming"
)

// ProviderClass distinguishes local inference from remote API backends.
type ProviderClass string

const (
	ProviderLocal  ProviderClass = "local"
	ProviderRemote ProviderClass = "remote"
)

// ModelDescriptor describes one backend model in the registry.
// Descriptors are immutable once registered; changes require an
// explicit re-registration.
type ModelDescriptor struct {
	// ID is the unique identifier used for routing and circuit state
	ID string `json:"id"`

	// DisplayName is the human-readable name
	DisplayName string `json:"display_name"`

	// Provider classifies the backend as local or remote
	Provider ProviderClass `json:"provider"`

	// Capabilities the model can serve
	Capabilities []Capability `json:"capabilities"`

	// InputCostPer1K is the cost per 1,000 input tokens in USD
	InputCostPer1K float64 `json:"input_cost_per_1k"`

	// OutputCostPer1K is the cost per 1,000 output tokens in USD
	OutputCostPer1K float64 `json:"output_cost_per_1k"`

	// LatencyP50 is the nominal 50th percentile latency
	LatencyP50 time.Duration `json:"latency_p50"`

	// MaxContextTokens is the maximum context window size
	MaxContextTokens int `json:"max_context_tokens"`

	// QualityTier orders models by capability; higher is better
	QualityTier int `json:"quality_tier"`
}

// Cost calculates the total cost for a request in USD.
func (d *ModelDescriptor) Cost(inputTokens, outputTokens int) float64 {
	inputCost := float64(inputTokens) / 1000 * d.InputCostPer1K
	outputCost := float64(outputTokens) / 1000 * d.OutputCostPer1K
	return inputCost + outputCost
}

// CostPer1K is the combined per-1K-token cost used for ranking and tie-breaking.
func (d *ModelDescriptor) CostPer1K() float64 {
	return d.InputCostPer1K + d.OutputCostPer1K
}

// HasCapability checks if the model supports a specific capability.
func (d *ModelDescriptor) HasCapability(capability Capability) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// HasCapabilities checks if the model's capability set is a superset of required.
func (d *ModelDescriptor) HasCapabilities(required []Capability) bool {
	for _, c := range required {
		if !d.HasCapability(c) {
			return false
		}
	}
	return true
}

// SameCapabilities reports whether two descriptors declare identical
// capability sets. Used to detect conflicting re-registrations at load time.
func (d *ModelDescriptor) SameCapabilities(other *ModelDescriptor) bool {
	if len(d.Capabilities) != len(other.Capabilities) {
		return false
	}
	for _, c := range d.Capabilities {
		if !other.HasCapability(c) {
			return false
		}
	}
	return true
}
