package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/veloro-ai/modelrouter/models"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML document shape of a model catalog. Entries
// are a wire type of their own so durations can be written as "800ms"
// rather than nanosecond integers.
type catalogFile struct {
	Models []catalogEntry `yaml:"models" validate:"required,min=1,dive"`
}

type catalogEntry struct {
	ID               string   `yaml:"id" validate:"required"`
	DisplayName      string   `yaml:"display_name" validate:"required"`
	Provider         string   `yaml:"provider" validate:"required,oneof=local remote"`
	Capabilities     []string `yaml:"capabilities" validate:"required,min=1,dive,oneof=text vision tool_use streaming"`
	InputCostPer1K   float64  `yaml:"input_cost_per_1k" validate:"gte=0"`
	OutputCostPer1K  float64  `yaml:"output_cost_per_1k" validate:"gte=0"`
	LatencyP50       string   `yaml:"latency_p50"`
	MaxContextTokens int      `yaml:"max_context_tokens" validate:"gt=0"`
	QualityTier      int      `yaml:"quality_tier" validate:"gte=0"`
}

func (e catalogEntry) descriptor() (models.ModelDescriptor, error) {
	var latency time.Duration
	if e.LatencyP50 != "" {
		parsed, err := time.ParseDuration(e.LatencyP50)
		if err != nil {
			return models.ModelDescriptor{}, fmt.Errorf("model %s: invalid latency_p50 %q: %w", e.ID, e.LatencyP50, err)
		}
		latency = parsed
	}

	caps := make([]models.Capability, 0, len(e.Capabilities))
	for _, c := range e.Capabilities {
		caps = append(caps, models.Capability(c))
	}

	return models.ModelDescriptor{
		ID:               e.ID,
		DisplayName:      e.DisplayName,
		Provider:         models.ProviderClass(e.Provider),
		Capabilities:     caps,
		InputCostPer1K:   e.InputCostPer1K,
		OutputCostPer1K:  e.OutputCostPer1K,
		LatencyP50:       latency,
		MaxContextTokens: e.MaxContextTokens,
		QualityTier:      e.QualityTier,
	}, nil
}

var catalogValidator = validator.New()

// LoadCatalog reads and validates a model catalog. An empty path yields
// the built-in default catalog.
func LoadCatalog(path string) ([]models.ModelDescriptor, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog bytes and validates every entry.
func ParseCatalog(data []byte) ([]models.ModelDescriptor, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalogValidator.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Models))
	out := make([]models.ModelDescriptor, 0, len(file.Models))
	for _, entry := range file.Models {
		if seen[entry.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate model id %q", entry.ID)
		}
		seen[entry.ID] = true

		desc, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		out = append(out, desc)
	}
	return out, nil
}

// DefaultCatalog returns the built-in model catalog used when no
// catalog file is configured. Prices are USD per 1K tokens.
func DefaultCatalog() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{
			ID:               "gpt-4-turbo",
			DisplayName:      "GPT-4 Turbo",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityVision, models.CapabilityToolUse, models.CapabilityStreaming},
			InputCostPer1K:   0.01,
			OutputCostPer1K:  0.03,
			LatencyP50:       2 * time.Second,
			MaxContextTokens: 128000,
			QualityTier:      4,
		},
		{
			ID:               "gpt-3.5-turbo",
			DisplayName:      "GPT-3.5 Turbo",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityToolUse, models.CapabilityStreaming},
			InputCostPer1K:   0.0005,
			OutputCostPer1K:  0.0015,
			LatencyP50:       800 * time.Millisecond,
			MaxContextTokens: 16385,
			QualityTier:      2,
		},
		{
			ID:               "claude-sonnet-4",
			DisplayName:      "Claude Sonnet 4",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityVision, models.CapabilityToolUse, models.CapabilityStreaming},
			InputCostPer1K:   0.003,
			OutputCostPer1K:  0.015,
			LatencyP50:       1500 * time.Millisecond,
			MaxContextTokens: 200000,
			QualityTier:      4,
		},
		{
			ID:               "claude-opus-4",
			DisplayName:      "Claude Opus 4",
			Provider:         models.ProviderRemote,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityVision, models.CapabilityToolUse, models.CapabilityStreaming},
			InputCostPer1K:   0.015,
			OutputCostPer1K:  0.075,
			LatencyP50:       3 * time.Second,
			MaxContextTokens: 200000,
			QualityTier:      5,
		},
		{
			ID:               "llama3.1-8b",
			DisplayName:      "Llama 3.1 8B (local)",
			Provider:         models.ProviderLocal,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityStreaming},
			InputCostPer1K:   0,
			OutputCostPer1K:  0,
			LatencyP50:       500 * time.Millisecond,
			MaxContextTokens: 128000,
			QualityTier:      2,
		},
		{
			ID:               "mistral-7b",
			DisplayName:      "Mistral 7B (local)",
			Provider:         models.ProviderLocal,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityStreaming},
			InputCostPer1K:   0,
			OutputCostPer1K:  0,
			LatencyP50:       400 * time.Millisecond,
			MaxContextTokens: 32768,
			QualityTier:      1,
		},
		{
			ID:               "phi3-mini",
			DisplayName:      "Phi-3 Mini (local)",
			Provider:         models.ProviderLocal,
			Capabilities:     []models.Capability{models.CapabilityText, models.CapabilityStreaming},
			InputCostPer1K:   0,
			OutputCostPer1K:  0,
			LatencyP50:       300 * time.Millisecond,
			MaxContextTokens: 4096,
			QualityTier:      1,
		},
	}
}
