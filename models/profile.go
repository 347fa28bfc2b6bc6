package models

// Complexity is the ordinal complexity bucket assigned to a request.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Rank returns the ordinal position of the bucket, trivial lowest.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityTrivial:
		return 0
	case ComplexitySimple:
		return 1
	case ComplexityModerate:
		return 2
	case ComplexityComplex:
		return 3
	default:
		return -1
	}
}

// Intent is the high-level category of what the request is trying to do.
type Intent string

const (
	IntentConversational Intent = "conversational"
	IntentInformational  Intent = "informational"
	IntentAnalytical     Intent = "analytical"
	IntentTechnical      Intent = "technical"
	IntentCreative       Intent = "creative"
)

// RequestProfile is the classifier's derived view of a request.
// It is created once per request and read-only afterward.
type RequestProfile struct {
	// Complexity bucket for weight selection
	Complexity Complexity `json:"complexity"`

	// Score is a numeric complexity score in [0,1] for tie-breaking
	Score float64 `json:"score"`

	// Intent category derived from lexical signals
	Intent Intent `json:"intent"`

	// EstimatedInputTokens from the raw text
	EstimatedInputTokens int `json:"estimated_input_tokens"`

	// EstimatedOutputTokens predicted from intent and complexity
	EstimatedOutputTokens int `json:"estimated_output_tokens"`

	// RequiredCapabilities the selected model must serve
	RequiredCapabilities []Capability `json:"required_capabilities"`

	// Tenant the request is billed against
	Tenant string `json:"tenant"`

	// Deterministic requests carry a fixed seed
	Deterministic bool  `json:"deterministic"`
	Seed          int64 `json:"seed,omitempty"`
}

// EstimatedTotalTokens is the context-size requirement used for filtering.
func (p *RequestProfile) EstimatedTotalTokens() int {
	return p.EstimatedInputTokens + p.EstimatedOutputTokens
}
