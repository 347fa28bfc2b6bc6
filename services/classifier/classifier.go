package classifier

import (
	"strings"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
)

// Metadata carries request attributes that are not derivable from the
// raw text alone.
type Metadata struct {
	// Tenant the request is billed against
	Tenant string

	// HasImages indicates attached image content (requires vision)
	HasImages bool

	// WantsStream indicates the caller expects a streaming response
	WantsStream bool

	// WantsTools indicates tool/function definitions are attached
	WantsTools bool

	// Deterministic requests carry a fixed seed
	Deterministic bool
	Seed          int64
}

// Keyword sets driving the lexical heuristics. Matching is substring
// based on the lowercased text, same as the platform's analyzer.
var (
	greetingKeywords = []string{
		"hello", "hi", "hey", "thanks", "thank you", "bye", "yes", "no",
	}

	simpleKeywords = []string{
		"what is", "who is", "when is", "where is", "define",
	}

	complexKeywords = []string{
		"analyze", "compare", "evaluate", "explain why", "reasoning",
		"strategy", "optimize", "design", "architecture", "algorithm",
		"prove", "derive", "calculate", "solve", "tradeoff", "trade-off",
	}

	technicalKeywords = []string{
		"code", "function", "class", "debug", "error", "bug", "implement",
		"python", "javascript", "java", "golang", "api", "sql", "database",
		"refactor", "test", "deploy",
	}

	creativeKeywords = []string{
		"write a story", "poem", "creative", "imagine", "brainstorm",
		"compose", "draft",
	}

	reasoningConnectives = []string{
		"because", "since", "therefore", "however", "although",
		"nevertheless", "consequently",
	}

	advancedReasoningKeywords = []string{
		"prove", "derive", "theorem", "logic", "deduce", "infer",
		"strategy", "optimize", "algorithm",
	}

	stepIndicators = []string{"first", "then", "next", "finally", "step"}
)

// Output token estimates per intent. Rough, but only used for cost
// estimation and context-length filtering.
const (
	outputTokensConversational = 50
	outputTokensCreative       = 500
	outputTokensTechnical      = 300
	outputTokensComplex        = 400
	outputTokensDefault        = 150
)

// Classifier turns raw request text and metadata into a RequestProfile.
//
// Classification is a pure function over its inputs: no clock, no
// randomness, and never a backend call, so the analyze dry-run always
// matches real routing for the same input.
type Classifier struct{}

// New creates a new Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify analyzes the raw text and metadata and produces the profile.
// Returns a validation error for empty text or a missing tenant.
func (c *Classifier) Classify(rawText string, meta Metadata) (*models.RequestProfile, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, services.ErrEmptyPrompt
	}
	if meta.Tenant == "" {
		return nil, services.ErrMissingTenant
	}

	lower := strings.ToLower(rawText)

	// Rough approximation: 1 token per 4 characters
	estimatedTokens := len(rawText) / 4

	intent := determineIntent(lower)
	complexity := determineComplexity(lower, estimatedTokens)
	score := reasoningScore(lower, complexity)

	profile := &models.RequestProfile{
		Complexity:            complexity,
		Score:                 score,
		Intent:                intent,
		EstimatedInputTokens:  estimatedTokens,
		EstimatedOutputTokens: estimateOutputTokens(intent, complexity),
		RequiredCapabilities:  requiredCapabilities(meta),
		Tenant:                meta.Tenant,
		Deterministic:         meta.Deterministic,
		Seed:                  meta.Seed,
	}
	return profile, nil
}

func requiredCapabilities(meta Metadata) []models.Capability {
	caps := []models.Capability{models.CapabilityText}
	if meta.HasImages {
		caps = append(caps, models.CapabilityVision)
	}
	if meta.WantsTools {
		caps = append(caps, models.CapabilityToolUse)
	}
	if meta.WantsStream {
		caps = append(caps, models.CapabilityStreaming)
	}
	return caps
}

func determineIntent(lower string) models.Intent {
	switch {
	case containsAny(lower, technicalKeywords) || hasCodeFence(lower):
		return models.IntentTechnical
	case containsAny(lower, creativeKeywords):
		return models.IntentCreative
	case containsAny(lower, complexKeywords):
		return models.IntentAnalytical
	case matchesGreeting(lower):
		return models.IntentConversational
	default:
		return models.IntentInformational
	}
}

func determineComplexity(lower string, estimatedTokens int) models.Complexity {
	// Very short greetings are trivial
	if estimatedTokens < 10 && matchesGreeting(lower) {
		return models.ComplexityTrivial
	}
	if estimatedTokens < 10 {
		return models.ComplexitySimple
	}

	if containsAny(lower, complexKeywords) || hasCodeFence(lower) {
		return models.ComplexityComplex
	}

	if containsAny(lower, simpleKeywords) || matchesGreeting(lower) {
		return models.ComplexitySimple
	}

	// Long prompts tend to require more reasoning
	if estimatedTokens > 100 {
		return models.ComplexityComplex
	}

	// Multi-part questions
	if strings.Count(lower, "?") > 1 {
		return models.ComplexityModerate
	}

	if containsAnyWord(lower, reasoningConnectives) {
		return models.ComplexityModerate
	}

	return models.ComplexitySimple
}

// reasoningScore produces a value in [0,1] used for tie-breaking.
func reasoningScore(lower string, complexity models.Complexity) float64 {
	var score float64
	switch complexity {
	case models.ComplexityTrivial:
		score = 0.1
	case models.ComplexitySimple:
		score = 0.25
	case models.ComplexityModerate:
		score = 0.5
	case models.ComplexityComplex:
		score = 0.8
	}

	if containsAny(lower, advancedReasoningKeywords) {
		score += 0.1
	}

	steps := 0
	for _, kw := range stepIndicators {
		if strings.Contains(lower, kw) {
			steps++
		}
	}
	if steps >= 2 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func estimateOutputTokens(intent models.Intent, complexity models.Complexity) int {
	switch {
	case intent == models.IntentConversational:
		return outputTokensConversational
	case intent == models.IntentCreative:
		return outputTokensCreative
	case intent == models.IntentTechnical:
		return outputTokensTechnical
	case complexity == models.ComplexityComplex:
		return outputTokensComplex
	default:
		return outputTokensDefault
	}
}

// matchesGreeting tokenizes on non-letter characters so short keywords
// like "hi" or "no" never match inside longer words.
func matchesGreeting(lower string) bool {
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	for _, kw := range greetingKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		for _, tok := range tokens {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

func hasCodeFence(text string) bool {
	return strings.Contains(text, "```")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// containsAnyWord matches whole words only, to keep connectives like
// "since" from matching inside longer tokens.
func containsAnyWord(text string, words []string) bool {
	padded := " " + text + " "
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}
