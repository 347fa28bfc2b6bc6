package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"go.uber.org/zap"
)

// scriptedInvoker fails or succeeds per model and counts invocations.
type scriptedInvoker struct {
	failures map[string]error
	calls    map[string]int
	inTokens int
	out      int
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{
		failures: make(map[string]error),
		calls:    make(map[string]int),
		inTokens: 100,
		out:      200,
	}
}

func (s *scriptedInvoker) Invoke(ctx context.Context, desc models.ModelDescriptor, payload Payload) (*Response, error) {
	s.calls[desc.ID]++
	if err, ok := s.failures[desc.ID]; ok {
		return nil, err
	}
	return &Response{
		Content:      "answer from " + desc.ID,
		InputTokens:  s.inTokens,
		OutputTokens: s.out,
		Latency:      5 * time.Millisecond,
	}, nil
}

func testDescriptor(id string, inCost, outCost float64) models.ModelDescriptor {
	return models.ModelDescriptor{
		ID:               id,
		DisplayName:      id,
		Provider:         models.ProviderRemote,
		Capabilities:     []models.Capability{models.CapabilityText},
		InputCostPer1K:   inCost,
		OutputCostPer1K:  outCost,
		LatencyP50:       time.Second,
		MaxContextTokens: 8192,
		QualityTier:      2,
	}
}

func testChain(ids ...string) *models.CandidateChain {
	chain := &models.CandidateChain{}
	for _, id := range ids {
		chain.Candidates = append(chain.Candidates, models.Candidate{
			Descriptor:    testDescriptor(id, 0.01, 0.02),
			EstimatedCost: 0.005,
		})
	}
	return chain
}

func testProfile() *models.RequestProfile {
	return &models.RequestProfile{
		Complexity:            models.ComplexityModerate,
		Tenant:                "acme",
		EstimatedInputTokens:  100,
		EstimatedOutputTokens: 150,
	}
}

type fixture struct {
	exec     *Executor
	invoker  *scriptedInvoker
	circuits *breaker.Group
	ledger   *budget.Ledger
}

func newFixture(ceiling float64) *fixture {
	logger := zap.NewNop()
	invoker := newScriptedInvoker()
	circuits := breaker.NewGroup(breaker.DefaultConfig(), logger)

	cfg := budget.DefaultConfig()
	cfg.DefaultCeiling = ceiling
	ledger := budget.NewLedger(cfg, nil, nil, logger)

	return &fixture{
		exec:     New(DefaultConfig(), invoker, circuits, ledger, logger),
		invoker:  invoker,
		circuits: circuits,
		ledger:   ledger,
	}
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(10)

	result, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.NoError(t, err)

	assert.Equal(t, "primary", result.ModelUsed.ID)
	assert.Equal(t, "answer from primary", result.Response.Content)
	assert.Empty(t, result.Attempts)

	// actual cost = 100/1000*0.01 + 200/1000*0.02 = 0.005
	assert.InDelta(t, 0.005, result.ActualCost, 1e-9)

	// Fallback never contacted
	assert.Zero(t, f.invoker.calls["fallback"])

	// Reservation settled: committed actual, nothing held
	record := f.ledger.SnapshotFor("acme")
	assert.InDelta(t, 0.005, record.Committed, 1e-9)
	assert.Zero(t, record.Reserved)
}

func TestExecuteFallback(t *testing.T) {
	f := newFixture(10)
	f.invoker.failures["primary"] = errors.New("boom")

	result, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.NoError(t, err)

	assert.Equal(t, "fallback", result.ModelUsed.ID)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, "primary", result.Attempts[0].ModelID)

	// Primary's reservation was released; only the fallback committed
	record := f.ledger.SnapshotFor("acme")
	assert.InDelta(t, 0.005, record.Committed, 1e-9)
	assert.Zero(t, record.Reserved)

	// The failure was recorded against the primary's breaker only
	assert.Equal(t, 1, f.invoker.calls["primary"])
	assert.Equal(t, breaker.StateClosed, f.circuits.State("primary"))
	assert.Equal(t, breaker.StateClosed, f.circuits.State("fallback"))
}

func TestExecuteSkipsOpenCircuit(t *testing.T) {
	f := newFixture(10)

	for i := 0; i < breaker.DefaultConfig().FailureThreshold; i++ {
		f.circuits.RecordFailure("primary")
	}
	require.Equal(t, breaker.StateOpen, f.circuits.State("primary"))

	result, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.NoError(t, err)

	assert.Equal(t, "fallback", result.ModelUsed.ID)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, "circuit open", result.Attempts[0].Reason)

	// No network attempt and no reservation for the skipped model
	assert.Zero(t, f.invoker.calls["primary"])
}

func TestExecuteChainExhausted(t *testing.T) {
	f := newFixture(10)
	f.invoker.failures["primary"] = errors.New("boom one")
	f.invoker.failures["fallback"] = errors.New("boom two")

	_, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsChainExhaustedError(err))

	details := services.GetErrorDetails(err)
	require.NotNil(t, details)
	trace, ok := details["attempts"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, trace, 2)
	assert.Equal(t, "primary", trace[0]["model_id"])
	assert.Equal(t, "fallback", trace[1]["model_id"])

	// Every reservation was released
	record := f.ledger.SnapshotFor("acme")
	assert.Zero(t, record.Committed)
	assert.Zero(t, record.Reserved)
}

func TestExecuteBudgetErrorIsTerminal(t *testing.T) {
	// Headroom covers nothing: the first reservation fails
	f := newFixture(0.001)

	_, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))

	// Budget exhaustion is never retried against another candidate
	assert.Zero(t, f.invoker.calls["primary"])
	assert.Zero(t, f.invoker.calls["fallback"])
}

func TestExecuteReserveFailureFreesTrialSlot(t *testing.T) {
	logger := zap.NewNop()
	invoker := newScriptedInvoker()

	cbCfg := breaker.DefaultConfig()
	cbCfg.Cooldown = time.Millisecond
	circuits := breaker.NewGroup(cbCfg, logger)

	var ceiling float64 = 0.001
	ledger := budget.NewLedger(budget.DefaultConfig(),
		func(string) float64 { return ceiling }, nil, logger)

	exec := New(DefaultConfig(), invoker, circuits, ledger, logger)

	// Open the primary's circuit and let the cooldown elapse
	for i := 0; i < cbCfg.FailureThreshold; i++ {
		circuits.RecordFailure("primary")
	}
	require.Equal(t, breaker.StateOpen, circuits.State("primary"))
	time.Sleep(5 * time.Millisecond)

	// The half-open trial is admitted but the reservation fails before
	// any backend call is made
	_, err := exec.Execute(context.Background(), testChain("primary"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))
	assert.Zero(t, invoker.calls["primary"])

	// Once the budget recovers the trial slot must be free again: the
	// next dispatch runs the trial and closes the circuit
	ceiling = 10

	result, err := exec.Execute(context.Background(), testChain("primary"), Payload{Text: "q"}, testProfile())
	require.NoError(t, err)
	assert.Equal(t, "primary", result.ModelUsed.ID)
	assert.Equal(t, 1, invoker.calls["primary"])
	assert.Equal(t, breaker.StateClosed, circuits.State("primary"))
}

func TestExecuteBudgetErrorCarriesAttempts(t *testing.T) {
	logger := zap.NewNop()
	invoker := newScriptedInvoker()
	invoker.failures["primary"] = errors.New("boom")
	circuits := breaker.NewGroup(breaker.DefaultConfig(), logger)

	// Headroom covers the first reservation only
	reserves := 0
	ledger := budget.NewLedger(budget.DefaultConfig(), func(string) float64 {
		reserves++
		if reserves > 1 {
			return 0
		}
		return 10
	}, nil, logger)

	exec := New(DefaultConfig(), invoker, circuits, ledger, logger)

	_, err := exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))
	assert.Zero(t, invoker.calls["fallback"])

	// The terminal budget error still names the candidates already tried
	details := services.GetErrorDetails(err)
	require.NotNil(t, details)
	trace, ok := details["attempts"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, trace, 1)
	assert.Equal(t, "primary", trace[0]["model_id"])
}

func TestExecuteAttemptTimeout(t *testing.T) {
	f := newFixture(10)
	f.invoker.failures["primary"] = context.DeadlineExceeded

	result, err := f.exec.Execute(context.Background(), testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.NoError(t, err)

	// A per-attempt timeout is a backend verdict: recorded, then the
	// walk advances to the fallback.
	assert.Equal(t, "fallback", result.ModelUsed.ID)
	require.Len(t, result.Attempts, 1)
	assert.Contains(t, result.Attempts[0].Reason, "timed out")
}

func TestExecuteCancellation(t *testing.T) {
	f := newFixture(10)

	ctx, cancel := context.WithCancel(context.Background())
	f.invoker.failures["primary"] = context.Canceled
	cancel()

	_, err := f.exec.Execute(ctx, testChain("primary", "fallback"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsChainExhaustedError(err))
	assert.True(t, errors.Is(err, context.Canceled))

	// A cancelled call is not a backend verdict: no breaker state moved
	assert.Equal(t, breaker.StateClosed, f.circuits.State("primary"))
	assert.Zero(t, f.invoker.calls["fallback"])

	// Nothing stayed reserved
	record := f.ledger.SnapshotFor("acme")
	assert.Zero(t, record.Reserved)
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	f := newFixture(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.exec.Execute(ctx, testChain("primary"), Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsChainExhaustedError(err))
	assert.Zero(t, f.invoker.calls["primary"])
}

func TestExecuteEmptyChain(t *testing.T) {
	f := newFixture(10)

	_, err := f.exec.Execute(context.Background(), &models.CandidateChain{}, Payload{Text: "q"}, testProfile())
	require.Error(t, err)
	assert.True(t, services.IsChainExhaustedError(err))
}
