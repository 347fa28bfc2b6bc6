package dispatch

import (
	"context"

	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"github.com/veloro-ai/modelrouter/services/classifier"
	"github.com/veloro-ai/modelrouter/services/executor"
	"github.com/veloro-ai/modelrouter/services/ratelimit"
	"github.com/veloro-ai/modelrouter/services/registry"
	"github.com/veloro-ai/modelrouter/services/router"
	"go.uber.org/zap"
)

// Request is a caller-facing dispatch or analyze request.
type Request struct {
	Text          string `json:"text"`
	Tenant        string `json:"tenant"`
	HasImages     bool   `json:"has_images,omitempty"`
	WantsStream   bool   `json:"stream,omitempty"`
	WantsTools    bool   `json:"tools,omitempty"`
	Deterministic bool   `json:"deterministic,omitempty"`
	Seed          int64  `json:"seed,omitempty"`
}

// DispatchResult is the full outcome of a dispatched request.
type DispatchResult struct {
	Response *executor.Response     `json:"response"`
	Decision *models.RoutingDecision `json:"decision"`

	// ModelUsed may differ from the decision's primary when fallbacks ran
	ModelUsed  models.ModelDescriptor `json:"model_used"`
	ActualCost float64                `json:"actual_cost"`
	Attempts   []executor.Attempt     `json:"attempts,omitempty"`
}

// Service is the front door of the routing core. It owns the
// classify -> route -> execute pipeline; handlers stay thin and only
// translate transport.
type Service struct {
	classifier *classifier.Classifier
	registry   *registry.Registry
	router     *router.Router
	executor   *executor.Executor
	ledger     *budget.Ledger
	circuits   *breaker.Group
	limiter    *ratelimit.Service
	logger     *zap.Logger
}

// NewService wires the pipeline stages together.
func NewService(
	cls *classifier.Classifier,
	reg *registry.Registry,
	rtr *router.Router,
	exec *executor.Executor,
	ledger *budget.Ledger,
	circuits *breaker.Group,
	limiter *ratelimit.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		classifier: cls,
		registry:   reg,
		router:     rtr,
		executor:   exec,
		ledger:     ledger,
		circuits:   circuits,
		limiter:    limiter,
		logger:     logger,
	}
}

// Analyze classifies the request and builds a routing decision without
// dispatching anything. It takes no reservations and records no
// breaker traffic, so it is safe to call at any rate for inspection.
func (s *Service) Analyze(ctx context.Context, req Request) (*models.RoutingDecision, error) {
	profile, err := s.classify(req)
	if err != nil {
		return nil, err
	}

	chain, err := s.router.Route(profile, s.ledger.SnapshotFor(req.Tenant))
	if err != nil {
		return nil, err
	}
	return router.Decision(profile, chain), nil
}

// Dispatch runs the full pipeline: rate limit, classify, route, then
// execute the candidate chain until one backend succeeds.
func (s *Service) Dispatch(ctx context.Context, req Request) (*DispatchResult, error) {
	profile, err := s.classify(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Allow(profile.Tenant); err != nil {
		return nil, err
	}

	chain, err := s.router.Route(profile, s.ledger.SnapshotFor(profile.Tenant))
	if err != nil {
		return nil, err
	}
	decision := router.Decision(profile, chain)

	result, err := s.executor.Execute(ctx, chain, executor.Payload{
		Text:   req.Text,
		Seed:   req.Seed,
		Stream: req.WantsStream,
	}, profile)
	if err != nil {
		return nil, err
	}

	s.logger.Info("request dispatched",
		zap.String("tenant", profile.Tenant),
		zap.String("complexity", string(profile.Complexity)),
		zap.String("model_used", result.ModelUsed.ID),
		zap.Float64("cost_usd", result.ActualCost),
		zap.Int("fallbacks_tried", len(result.Attempts)))

	return &DispatchResult{
		Response:   result.Response,
		Decision:   decision,
		ModelUsed:  result.ModelUsed,
		ActualCost: result.ActualCost,
		Attempts:   result.Attempts,
	}, nil
}

// Models lists the catalog with current circuit state per model.
func (s *Service) Models() []ModelStatus {
	snapshot := s.registry.Snapshot()
	out := make([]ModelStatus, 0, len(snapshot))
	for _, desc := range snapshot {
		out = append(out, ModelStatus{
			Descriptor: desc,
			Circuit:    s.circuits.State(desc.ID),
		})
	}
	return out
}

// ModelStatus pairs a descriptor with its live circuit state.
type ModelStatus struct {
	Descriptor models.ModelDescriptor `json:"descriptor"`
	Circuit    breaker.State          `json:"circuit"`
}

// Circuits snapshots all breaker states for introspection.
func (s *Service) Circuits() map[string]breaker.State {
	return s.circuits.States()
}

// Budget returns the tenant's current budget record.
func (s *Service) Budget(tenant string) (budget.Record, error) {
	if tenant == "" {
		return budget.Record{}, services.ErrMissingTenant
	}
	return s.ledger.SnapshotFor(tenant), nil
}

func (s *Service) classify(req Request) (*models.RequestProfile, error) {
	return s.classifier.Classify(req.Text, classifier.Metadata{
		Tenant:        req.Tenant,
		HasImages:     req.HasImages,
		WantsStream:   req.WantsStream,
		WantsTools:    req.WantsTools,
		Deterministic: req.Deterministic,
		Seed:          req.Seed,
	})
}
