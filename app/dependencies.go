package app

import (
	"context"
	"fmt"

	"github.com/veloro-ai/modelrouter/config"
	"github.com/veloro-ai/modelrouter/middleware"
	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"github.com/veloro-ai/modelrouter/services/classifier"
	"github.com/veloro-ai/modelrouter/services/dispatch"
	"github.com/veloro-ai/modelrouter/services/executor"
	"github.com/veloro-ai/modelrouter/services/providers"
	"github.com/veloro-ai/modelrouter/services/ratelimit"
	"github.com/veloro-ai/modelrouter/services/registry"
	"github.com/veloro-ai/modelrouter/services/router"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection: construction order follows
// the pipeline, and everything downstream receives its collaborators
// explicitly.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Pipeline stages
	Classifier *classifier.Classifier
	Circuits   *breaker.Group
	Registry   *registry.Registry
	Ledger     *budget.Ledger
	Limiter    *ratelimit.Service
	Router     *router.Router
	Executor   *executor.Executor
	Dispatch   *dispatch.Service

	// Middleware
	TenantMiddleware *middleware.TenantMiddleware

	journal *budget.PostgresJournal
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.Classifier = classifier.New()
	deps.Circuits = breaker.NewGroup(cfg.Breaker, logger)
	deps.Registry = registry.New(deps.Circuits, logger)
	deps.Limiter = ratelimit.NewService(cfg.RateLimit, logger)

	if err := deps.initCatalog(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	if err := deps.initLedger(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	deps.Router = router.New(cfg.Router, deps.Registry, deps.Circuits, logger)
	deps.Executor = executor.New(cfg.Executor, deps.newInvoker(cfg), deps.Circuits, deps.Ledger, logger)
	deps.Dispatch = dispatch.NewService(
		deps.Classifier, deps.Registry, deps.Router, deps.Executor,
		deps.Ledger, deps.Circuits, deps.Limiter, logger)

	deps.TenantMiddleware = middleware.NewTenantMiddleware(cfg.Server.JWTSecret, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initCatalog loads the model catalog and optionally starts the file
// watcher for hot reload.
func (d *Dependencies) initCatalog(ctx context.Context, cfg *config.Config) error {
	descriptors, err := config.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	if err := d.Registry.Reload(descriptors); err != nil {
		return err
	}
	d.Logger.Info("model catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("models", d.Registry.Count()))

	if cfg.Catalog.Watch {
		reload := func(next []models.ModelDescriptor) error {
			return d.Registry.Reload(next)
		}
		if err := config.WatchCatalog(ctx, cfg.Catalog.Path, reload, d.Logger); err != nil {
			return fmt.Errorf("failed to watch catalog: %w", err)
		}
	}
	return nil
}

// initLedger builds the budget ledger, attaching the Postgres spend
// journal when configured, and starts the reservation janitor.
func (d *Dependencies) initLedger(ctx context.Context, cfg *config.Config) error {
	var journal budget.Journal
	if cfg.Journal.URL != "" {
		pg, err := budget.OpenPostgresJournal(ctx, cfg.Journal.URL, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to open spend journal: %w", err)
		}
		d.journal = pg
		journal = pg
		d.Logger.Info("spend journal connected")
	}

	ceiling := func(tenant string) float64 { return cfg.Budget.DefaultCeiling }
	d.Ledger = budget.NewLedger(cfg.Budget, ceiling, journal, d.Logger)
	go d.Ledger.StartJanitor(ctx)
	return nil
}

// newInvoker selects the backend invoker. Without any gateway
// configured the static echo invoker serves local development.
func (d *Dependencies) newInvoker(cfg *config.Config) executor.Invoker {
	if cfg.Gateways.RemoteBaseURL == "" && cfg.Gateways.LocalBaseURL == "" {
		d.Logger.Warn("no backend gateways configured, using static invoker")
		return providers.NewStaticInvoker()
	}
	return providers.NewHTTPInvoker(providers.Config{
		Endpoints: map[models.ProviderClass]providers.Endpoint{
			models.ProviderRemote: {BaseURL: cfg.Gateways.RemoteBaseURL, APIKey: cfg.Gateways.RemoteAPIKey},
			models.ProviderLocal:  {BaseURL: cfg.Gateways.LocalBaseURL},
		},
		Timeout: cfg.Gateways.Timeout,
	}, d.Logger)
}

// Close releases held resources.
func (d *Dependencies) Close() error {
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}
