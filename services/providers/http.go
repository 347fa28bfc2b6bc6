package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services/executor"
	"go.uber.org/zap"
)

// Endpoint describes one backend gateway reachable over HTTP.
type Endpoint struct {
	// BaseURL of the completion gateway, without trailing slash
	BaseURL string

	// APIKey sent as a bearer token when non-empty
	APIKey string
}

// Config maps each provider to its gateway endpoint.
type Config struct {
	Endpoints map[models.ProviderClass]Endpoint
	Timeout   time.Duration
}

// completionRequest is the wire request sent to a backend gateway.
type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Seed      int64  `json:"seed,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// completionResponse is the wire response from a backend gateway.
type completionResponse struct {
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Error        string `json:"error,omitempty"`
}

// HTTPInvoker calls model backends over HTTP JSON gateways. It holds no
// routing or budget logic; it translates a descriptor plus payload into
// one bounded request and reports the outcome verbatim.
type HTTPInvoker struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewHTTPInvoker creates an invoker over the configured endpoints.
func NewHTTPInvoker(cfg Config, logger *zap.Logger) *HTTPInvoker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPInvoker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Invoke sends the payload to the gateway configured for the model's
// provider. Cancellation and deadlines are taken from ctx.
func (h *HTTPInvoker) Invoke(ctx context.Context, desc models.ModelDescriptor, payload executor.Payload) (*executor.Response, error) {
	endpoint, ok := h.cfg.Endpoints[desc.Provider]
	if !ok {
		return nil, fmt.Errorf("no endpoint configured for provider %q", desc.Provider)
	}

	body, err := json.Marshal(completionRequest{
		Model:  desc.ID,
		Prompt: payload.Text,
		Seed:   payload.Seed,
		Stream: payload.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint.BaseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		// Unwrap url.Error so the executor sees context errors directly
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var wire completionResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBody, &wire) == nil && wire.Error != "" {
			msg = wire.Error
		}
		h.logger.Warn("backend returned error status",
			zap.String("model_id", desc.ID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, msg)
	}

	var wire completionResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &executor.Response{
		Content:      wire.Content,
		InputTokens:  wire.InputTokens,
		OutputTokens: wire.OutputTokens,
		Latency:      time.Since(started),
	}, nil
}
