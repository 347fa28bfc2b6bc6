package executor

import (
	"context"
	"errors"
	"time"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"go.uber.org/zap"
)

// Payload is the opaque request content forwarded to a backend.
type Payload struct {
	Text string `json:"text"`

	// Seed for deterministic requests; backends that support it honor it
	Seed int64 `json:"seed,omitempty"`

	// Stream requests a streaming response from the backend
	Stream bool `json:"stream,omitempty"`
}

// Response is a successful backend reply.
type Response struct {
	Content      string        `json:"content"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Latency      time.Duration `json:"latency"`
}

// Invoker is the backend-invocation capability. The surrounding system
// supplies one implementation per deployment (HTTP client to a model
// provider, local inference process). The executor treats a call as an
// opaque operation bounded by ctx.
type Invoker interface {
	Invoke(ctx context.Context, desc models.ModelDescriptor, payload Payload) (*Response, error)
}

// Attempt records one candidate try for the decision trace.
type Attempt struct {
	ModelID string `json:"model_id"`
	Reason  string `json:"reason"`
}

// Result is the outcome of a successful chain walk.
type Result struct {
	// Response from the backend that succeeded
	Response *Response `json:"response"`

	// ModelUsed identifies which candidate served the request
	ModelUsed models.ModelDescriptor `json:"model_used"`

	// ActualCost committed against the tenant's budget, in USD
	ActualCost float64 `json:"actual_cost"`

	// Attempts lists failed candidates tried before the success
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Config holds executor timing configuration.
type Config struct {
	// AttemptTimeout bounds each backend call; the remaining overall
	// deadline is the hard ceiling and always wins when smaller
	AttemptTimeout time.Duration
}

// DefaultConfig returns executor defaults.
func DefaultConfig() Config {
	return Config{AttemptTimeout: 30 * time.Second}
}

// Executor drives backend calls against a candidate chain. It is the
// only component holding the backend-invocation and ledger-mutation
// capabilities; both are passed in by construction, never looked up
// from ambient state.
type Executor struct {
	cfg      Config
	invoker  Invoker
	circuits *breaker.Group
	ledger   *budget.Ledger
	logger   *zap.Logger
}

// New creates an executor bound to its capabilities.
func New(cfg Config, invoker Invoker, circuits *breaker.Group, ledger *budget.Ledger, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		invoker:  invoker,
		circuits: circuits,
		ledger:   ledger,
		logger:   logger,
	}
}

// Execute walks the chain in ranked order until one candidate succeeds
// or the chain is exhausted. Each candidate is attempted at most once.
// On success the attempt's reservation is committed with actual cost
// and remaining candidates are not tried. The overall deadline on ctx
// is the hard ceiling across the whole walk.
func (e *Executor) Execute(ctx context.Context, chain *models.CandidateChain, payload Payload, profile *models.RequestProfile) (*Result, error) {
	var attempts []Attempt

	for _, candidate := range chain.Candidates {
		if err := ctx.Err(); err != nil {
			// Overall deadline exceeded or caller cancelled mid-walk
			return nil, e.exhausted(attempts, err)
		}

		desc := candidate.Descriptor
		cb := e.circuits.For(desc.ID)

		// The chain was built against a circuit snapshot; a circuit may
		// have opened since. Fail fast with no network attempt.
		if !cb.Allow() {
			attempts = append(attempts, Attempt{ModelID: desc.ID, Reason: "circuit open"})
			e.logger.Debug("skipping open circuit", zap.String("model_id", desc.ID))
			continue
		}

		result, err := e.attempt(ctx, cb, desc, profile.Tenant, candidate.EstimatedCost, payload)
		if err == nil {
			result.Attempts = attempts
			return result, nil
		}

		// Cancellation of the enclosing request is not a backend verdict:
		// nothing was recorded and the walk stops here. A per-attempt
		// timeout is a backend failure and advances the chain instead.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, e.exhausted(attempts, ctxErr)
		}

		// Budget exhaustion mid-walk is terminal, never retried against
		// another candidate. It still carries the candidates already tried.
		if services.IsBudgetError(err) {
			var domainErr *services.DomainError
			if errors.As(err, &domainErr) && len(attempts) > 0 {
				domainErr.WithDetail("attempts", attemptTrace(attempts))
			}
			return nil, err
		}

		attempts = append(attempts, Attempt{ModelID: desc.ID, Reason: err.Error()})
		e.logger.Warn("candidate attempt failed",
			zap.String("model_id", desc.ID),
			zap.String("tenant", profile.Tenant),
			zap.Error(err))
	}

	return nil, e.exhausted(attempts, nil)
}

// attempt runs one candidate call: reserve, invoke under the attempt
// timeout, then commit on success or release and record on failure.
func (e *Executor) attempt(ctx context.Context, cb *breaker.Breaker, desc models.ModelDescriptor, tenant string, estimatedCost float64, payload Payload) (*Result, error) {
	reservation, err := e.ledger.Reserve(tenant, estimatedCost)
	if err != nil {
		// No backend call happened, so there is no verdict to record.
		// Allow may have admitted this attempt as the half-open trial;
		// free the slot or the breaker stays stuck refusing everything.
		cb.CancelTrial()
		return nil, err
	}

	// Per-attempt timeout, bounded by the remaining overall deadline.
	attemptCtx := ctx
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}

	resp, invokeErr := e.invoker.Invoke(attemptCtx, desc, payload)
	if invokeErr != nil {
		// The reservation is tied to this attempt; always give it back.
		if relErr := e.ledger.Release(reservation.Token); relErr != nil {
			e.logger.Error("failed to release reservation",
				zap.String("model_id", desc.ID), zap.Error(relErr))
		}

		// The enclosing request was cancelled or ran out its overall
		// deadline: the call did not conclude, so it is excluded from
		// the failure-rate window.
		if ctx.Err() != nil {
			cb.CancelTrial()
			return nil, ctx.Err()
		}

		if errors.Is(invokeErr, context.DeadlineExceeded) {
			cb.RecordFailure()
			return nil, services.NewDomainError(services.ErrorTypeBackendTimeout,
				"backend call timed out", invokeErr).
				WithDetail("model_id", desc.ID)
		}

		cb.RecordFailure()
		return nil, services.NewDomainError(services.ErrorTypeBackend,
			"backend call failed", invokeErr).
			WithDetail("model_id", desc.ID)
	}

	actualCost := desc.Cost(resp.InputTokens, resp.OutputTokens)
	if err := e.ledger.Commit(ctx, reservation.Token, actualCost); err != nil {
		// Spend tracking must not fail a served request; log and continue.
		e.logger.Error("failed to commit reservation",
			zap.String("model_id", desc.ID), zap.Error(err))
	}
	cb.RecordSuccess()

	e.logger.Info("backend call succeeded",
		zap.String("model_id", desc.ID),
		zap.String("tenant", tenant),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Float64("cost_usd", actualCost),
		zap.Duration("latency", resp.Latency))

	return &Result{
		Response:   resp,
		ModelUsed:  desc,
		ActualCost: actualCost,
	}, nil
}

// exhausted builds the terminal chain-exhausted (or cancellation) error
// carrying every attempted model and its failure reason.
func (e *Executor) exhausted(attempts []Attempt, cause error) error {
	if cause != nil && !errors.Is(cause, context.DeadlineExceeded) && !errors.Is(cause, context.Canceled) {
		cause = nil
	}
	domainErr := services.NewDomainError(services.ErrorTypeChainExhausted,
		"all chain candidates failed", cause)
	domainErr.WithDetail("attempts", attemptTrace(attempts))
	return domainErr
}

func attemptTrace(attempts []Attempt) []map[string]string {
	trace := make([]map[string]string, 0, len(attempts))
	for _, a := range attempts {
		trace = append(trace, map[string]string{"model_id": a.ModelID, "reason": a.Reason})
	}
	return trace
}
