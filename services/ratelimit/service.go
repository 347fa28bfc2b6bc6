package ratelimit

import (
	"sync"

	"github.com/veloro-ai/modelrouter/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds per-tenant rate limit configuration.
type Config struct {
	// RequestsPerSecond allowed per tenant; zero disables limiting
	RequestsPerSecond float64

	// Burst is the token-bucket burst size
	Burst int
}

// DefaultConfig returns sensible rate limit defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// Service enforces per-tenant request rates using a token bucket per
// tenant. Limiters are created lazily on first use.
type Service struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a rate limit service.
func NewService(cfg Config, logger *zap.Logger) *Service {
	return &Service{
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
		logger:   logger,
	}
}

// Allow checks the tenant's bucket. Returns a rate-limit domain error
// when the tenant has exhausted its allowance.
func (s *Service) Allow(tenant string) error {
	if s.cfg.RequestsPerSecond <= 0 {
		return nil
	}

	if !s.limiterFor(tenant).Allow() {
		s.logger.Warn("rate limit exceeded", zap.String("tenant", tenant))
		return services.NewDomainError(services.ErrorTypeRateLimit,
			"tenant request rate exceeded", nil).
			WithDetail("tenant", tenant).
			WithDetail("requests_per_second", s.cfg.RequestsPerSecond)
	}
	return nil
}

func (s *Service) limiterFor(tenant string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[tenant]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)
		s.limiters[tenant] = limiter
	}
	return limiter
}
