package models

// Candidate is one ranked entry in a candidate chain.
type Candidate struct {
	// Descriptor of the candidate model
	Descriptor ModelDescriptor `json:"descriptor"`

	// Score assigned by the router; lower is better
	Score float64 `json:"score"`

	// EstimatedCost for this request against this model, in USD
	EstimatedCost float64 `json:"estimated_cost"`
}

// RejectedCandidate records a model excluded during filtering and why.
type RejectedCandidate struct {
	ModelID string `json:"model_id"`
	Reason  string `json:"reason"`
}

// CandidateChain is the router's ordered output for one request:
// primary first, fallbacks in ranked order. A descriptor appears at
// most once per chain. The chain is immutable once produced and is
// consumed exactly once by the executor.
type CandidateChain struct {
	// Candidates in ranked order; index 0 is the primary
	Candidates []Candidate `json:"candidates"`

	// Rejected models with filter reasons, for the decision trace
	Rejected []RejectedCandidate `json:"rejected,omitempty"`

	// Reasoning is the human-readable selection rationale
	Reasoning []string `json:"reasoning"`
}

// Primary returns the top-ranked candidate. Callers must check Len first.
func (c *CandidateChain) Primary() Candidate {
	return c.Candidates[0]
}

// Len returns the number of candidates in the chain.
func (c *CandidateChain) Len() int {
	return len(c.Candidates)
}

// ModelIDs lists candidate model identifiers in ranked order.
func (c *CandidateChain) ModelIDs() []string {
	ids := make([]string, 0, len(c.Candidates))
	for _, cand := range c.Candidates {
		ids = append(ids, cand.Descriptor.ID)
	}
	return ids
}

// RoutingDecision is the artifact returned to callers, including the
// dry-run analyze path that routes without executing.
type RoutingDecision struct {
	// SelectedModel is the primary candidate's descriptor
	SelectedModel ModelDescriptor `json:"selected_model"`

	// Chain is the full candidate chain behind the selection
	Chain *CandidateChain `json:"chain"`

	// Profile produced by the classifier for this request
	Profile *RequestProfile `json:"profile"`

	// EstimatedCost of the primary candidate in USD
	EstimatedCost float64 `json:"estimated_cost"`

	// Reasoning mirrors the chain's rationale for convenience
	Reasoning []string `json:"reasoning"`
}
