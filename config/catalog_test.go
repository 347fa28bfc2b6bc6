package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloro-ai/modelrouter/models"
)

const sampleCatalog = `
models:
  - id: test-remote
    display_name: Test Remote
    provider: remote
    capabilities: [text, streaming]
    input_cost_per_1k: 0.001
    output_cost_per_1k: 0.002
    latency_p50: 800ms
    max_context_tokens: 16000
    quality_tier: 2
  - id: test-local
    display_name: Test Local
    provider: local
    capabilities: [text]
    latency_p50: 300ms
    max_context_tokens: 8192
    quality_tier: 1
`

func TestParseCatalog(t *testing.T) {
	t.Run("parses a valid catalog", func(t *testing.T) {
		descriptors, err := ParseCatalog([]byte(sampleCatalog))
		require.NoError(t, err)
		require.Len(t, descriptors, 2)

		assert.Equal(t, "test-remote", descriptors[0].ID)
		assert.Equal(t, models.ProviderRemote, descriptors[0].Provider)
		assert.Equal(t, 800*time.Millisecond, descriptors[0].LatencyP50)
		assert.Equal(t, 0.001, descriptors[0].InputCostPer1K)

		assert.Equal(t, models.ProviderLocal, descriptors[1].Provider)
		assert.Zero(t, descriptors[1].InputCostPer1K)
	})

	t.Run("rejects malformed YAML", func(t *testing.T) {
		_, err := ParseCatalog([]byte("models: [not: closed"))
		assert.Error(t, err)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		bad := `
models:
  - id: m1
    display_name: M1
    provider: cloud
    capabilities: [text]
    max_context_tokens: 100
`
		_, err := ParseCatalog([]byte(bad))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid catalog")
	})

	t.Run("rejects unknown capability", func(t *testing.T) {
		bad := `
models:
  - id: m1
    display_name: M1
    provider: remote
    capabilities: [telepathy]
    max_context_tokens: 100
`
		_, err := ParseCatalog([]byte(bad))
		assert.Error(t, err)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		dup := `
models:
  - id: m1
    display_name: First
    provider: remote
    capabilities: [text]
    max_context_tokens: 100
  - id: m1
    display_name: Second
    provider: remote
    capabilities: [text]
    max_context_tokens: 100
`
		_, err := ParseCatalog([]byte(dup))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate model id")
	})

	t.Run("rejects an empty catalog", func(t *testing.T) {
		_, err := ParseCatalog([]byte("models: []"))
		assert.Error(t, err)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("empty path yields the built-in catalog", func(t *testing.T) {
		descriptors, err := LoadCatalog("")
		require.NoError(t, err)
		assert.Equal(t, DefaultCatalog(), descriptors)
	})

	t.Run("loads from a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

		descriptors, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Len(t, descriptors, 2)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadCatalog("/nonexistent/catalog.yaml")
		assert.Error(t, err)
	})
}

func TestDefaultCatalog(t *testing.T) {
	descriptors := DefaultCatalog()
	require.NotEmpty(t, descriptors)

	t.Run("every entry is well formed", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, desc := range descriptors {
			assert.NotEmpty(t, desc.ID)
			assert.False(t, seen[desc.ID], "duplicate %s", desc.ID)
			seen[desc.ID] = true
			assert.NotEmpty(t, desc.Capabilities)
			assert.Positive(t, desc.MaxContextTokens)
		}
	})

	t.Run("local models are free", func(t *testing.T) {
		var locals int
		for _, desc := range descriptors {
			if desc.Provider == models.ProviderLocal {
				locals++
				assert.Zero(t, desc.CostPer1K(), "%s", desc.ID)
			}
		}
		assert.NotZero(t, locals)
	})
}
