package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services/executor"
)

// StaticInvoker serves canned completions without any network calls.
// It backs local development and the dry-run deployment mode: every
// model answers with an echo, and specific models can be scripted to
// fail.
type StaticInvoker struct {
	// Failures maps model ids to the error their calls return
	Failures map[string]error

	// Delay simulates backend latency per call
	Delay time.Duration
}

// NewStaticInvoker creates an invoker where every model succeeds.
func NewStaticInvoker() *StaticInvoker {
	return &StaticInvoker{Failures: make(map[string]error)}
}

// Fail scripts a model to return the given error.
func (s *StaticInvoker) Fail(modelID string, err error) {
	s.Failures[modelID] = err
}

// Invoke returns an echo completion, honoring ctx during the simulated
// delay.
func (s *StaticInvoker) Invoke(ctx context.Context, desc models.ModelDescriptor, payload executor.Payload) (*executor.Response, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := s.Failures[desc.ID]; ok {
		return nil, err
	}

	content := fmt.Sprintf("[%s] %s", desc.ID, payload.Text)
	return &executor.Response{
		Content:      content,
		InputTokens:  len(payload.Text) / 4,
		OutputTokens: len(content) / 4,
		Latency:      s.Delay,
	}, nil
}
