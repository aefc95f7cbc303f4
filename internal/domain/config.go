package domain

import "time"

// Config holds the complete Covenant configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Engine tunables
	Engine   EngineConfig   `json:"engine"`
	Patterns PatternsConfig `json:"patterns"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Worker     WorkerConfig     `json:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EngineConfig holds the analysis thresholds.
type EngineConfig struct {
	// A clause is structurally complex when longer than ComplexityMinLength
	// and containing at least ComplexityMinConnectors distinct connectors.
	ComplexityMinLength     int `json:"complexityMinLength"`
	ComplexityMinConnectors int `json:"complexityMinConnectors"`

	// TrustClauseRiskLevels turns pre-assessed clause levels into findings.
	TrustClauseRiskLevels bool `json:"trustClauseRiskLevels"`

	// MaxWorkers bounds parallel pattern evaluation.
	MaxWorkers int `json:"maxWorkers"`

	// Aggregation thresholds
	MediumEscalationCount int     `json:"mediumEscalationCount"`
	LowRiskMaxCount       int     `json:"lowRiskMaxCount"`
	SimilarityThreshold   float64 `json:"similarityThreshold"`
}

// PatternsConfig controls custom pattern loading.
type PatternsConfig struct {
	// Dir holds *.yaml pattern files merged over the built-in catalog.
	Dir string `json:"dir"`

	// Watch reloads the catalog when Dir changes.
	Watch bool `json:"watch"`
}

// WorkerConfig controls the asynchronous assessment worker.
type WorkerConfig struct {
	Enabled bool     `json:"enabled"`
	Tenants []string `json:"tenants"` // empty subscribes to all tenants
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
	MaxBodyBytes int64  `json:"maxBodyBytes"`

	// AllowedOrigins restricts CORS. Empty allows any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`

	// Per-tenant request budget. Zero disables rate limiting.
	RateLimitRPS   float64 `json:"rateLimitRps,omitempty"`
	RateLimitBurst int     `json:"rateLimitBurst,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, none
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultEngineConfig returns the standard analysis thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ComplexityMinLength:     1000,
		ComplexityMinConnectors: 2,
		TrustClauseRiskLevels:   true,
		MaxWorkers:              8,
		MediumEscalationCount:   3,
		LowRiskMaxCount:         3,
		SimilarityThreshold:     0.6,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			MaxBodyBytes: 5 << 20,
		},
		Tier:   TierCommunity,
		Engine: DefaultEngineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./covenant.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "covenant",
			ExporterType: "stdout",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "covenant",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       60 * time.Second,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "covenant-workers",
	}
	cfg.Server.RateLimitRPS = 50
	cfg.Server.RateLimitBurst = 100
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
