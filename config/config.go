package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/veloro-ai/modelrouter/models"
	"github.com/veloro-ai/modelrouter/services/breaker"
	"github.com/veloro-ai/modelrouter/services/budget"
	"github.com/veloro-ai/modelrouter/services/executor"
	"github.com/veloro-ai/modelrouter/services/ratelimit"
	"github.com/veloro-ai/modelrouter/services/router"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Catalog       CatalogConfig
	Router        router.Config
	Breaker       breaker.Config
	Budget        budget.Config
	RateLimit     ratelimit.Config
	Executor      executor.Config
	Journal       JournalConfig
	Gateways      GatewaysConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	JWTSecret       string
}

// CatalogConfig holds model catalog configuration
type CatalogConfig struct {
	// Path to a YAML catalog file; empty uses the built-in catalog
	Path string

	// Watch enables hot reload when the catalog file changes
	Watch bool
}

// JournalConfig holds the optional spend journal configuration.
// When URL is empty the ledger runs without a journal.
type JournalConfig struct {
	URL string
}

// GatewaysConfig holds backend gateway endpoints per provider class
type GatewaysConfig struct {
	RemoteBaseURL string
	RemoteAPIKey  string
	LocalBaseURL  string
	Timeout       time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			JWTSecret:       getEnv("JWT_SECRET", ""),
		},
		Catalog: CatalogConfig{
			Path:  getEnv("CATALOG_PATH", ""),
			Watch: getEnvAsBool("CATALOG_WATCH", false),
		},
		Router: router.Config{
			WeightsFor:     routerWeights(),
			MaxChainLength: getEnvAsInt("ROUTER_MAX_CHAIN_LENGTH", 3),
		},
		Breaker: breaker.Config{
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			Window:           getEnvAsDuration("BREAKER_WINDOW", 30*time.Second),
			Cooldown:         getEnvAsDuration("BREAKER_COOLDOWN", 10*time.Second),
			MaxCooldown:      getEnvAsDuration("BREAKER_MAX_COOLDOWN", 5*time.Minute),
		},
		Budget: budget.Config{
			DefaultCeiling:  getEnvAsFloat("BUDGET_DEFAULT_CEILING_USD", 25.0),
			ReservationTTL:  getEnvAsDuration("BUDGET_RESERVATION_TTL", 2*time.Minute),
			JanitorInterval: getEnvAsDuration("BUDGET_JANITOR_INTERVAL", 30*time.Second),
		},
		RateLimit: ratelimit.Config{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Executor: executor.Config{
			AttemptTimeout: getEnvAsDuration("EXECUTOR_ATTEMPT_TIMEOUT", 30*time.Second),
		},
		Journal: JournalConfig{
			URL: getEnv("JOURNAL_DATABASE_URL", ""),
		},
		Gateways: GatewaysConfig{
			RemoteBaseURL: getEnv("GATEWAY_REMOTE_BASE_URL", ""),
			RemoteAPIKey:  getEnv("GATEWAY_REMOTE_API_KEY", ""),
			LocalBaseURL:  getEnv("GATEWAY_LOCAL_BASE_URL", "http://localhost:11434"),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// routerWeights loads per-bucket scoring weights, falling back to the
// router defaults for any bucket not overridden.
func routerWeights() map[models.Complexity]router.Weights {
	weights := router.DefaultConfig().WeightsFor
	for bucket, envPrefix := range map[models.Complexity]string{
		models.ComplexityTrivial:  "ROUTER_WEIGHTS_TRIVIAL",
		models.ComplexitySimple:   "ROUTER_WEIGHTS_SIMPLE",
		models.ComplexityModerate: "ROUTER_WEIGHTS_MODERATE",
		models.ComplexityComplex:  "ROUTER_WEIGHTS_COMPLEX",
	} {
		w := weights[bucket]
		w.CostWeight = getEnvAsFloat(envPrefix+"_COST", w.CostWeight)
		w.LatencyWeight = getEnvAsFloat(envPrefix+"_LATENCY", w.LatencyWeight)
		w.QualityWeight = getEnvAsFloat(envPrefix+"_QUALITY", w.QualityWeight)
		weights[bucket] = w
	}
	return weights
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be positive")
	}
	if c.Budget.DefaultCeiling < 0 {
		return fmt.Errorf("budget ceiling cannot be negative")
	}
	if c.Router.MaxChainLength < 1 {
		return fmt.Errorf("router max chain length must be positive")
	}
	if c.Catalog.Watch && c.Catalog.Path == "" {
		return fmt.Errorf("catalog watch requires CATALOG_PATH")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
