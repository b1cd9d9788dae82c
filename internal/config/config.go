// Package config assembles the process-wide settings this service reads at
// startup, in three layers of increasing priority: struct defaults, then
// environment variables, then functional Option overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable this service recognizes, grouped by the
// subsystem each group configures.
type Config struct {
	ServiceName string

	Knowledge  KnowledgeConfig
	RateLimit  RateLimitConfig
	SSRF       SSRFConfig
	Session    SessionConfig
	Graph      GraphConfig
	Logging    LoggingConfig
	Telemetry  TelemetryConfig
}

// KnowledgeConfig governs the Auto-Connection Pipeline (C5).
type KnowledgeConfig struct {
	AutoConnectionEnabled bool          `env:"AUTO_CONNECTION_ENABLED" default:"true"`
	MaxConcurrency        int           `env:"KNOWLEDGE_MAX_CONCURRENCY" default:"3"`
	RequestTimeout        time.Duration `env:"KNOWLEDGE_TIMEOUT_MS" default:"5000ms"`
	ConfidenceThreshold   float64       `env:"KNOWLEDGE_CONFIDENCE_THRESHOLD" default:"0.3"`
	MaxResponseChars      int           `env:"KNOWLEDGE_MAX_RESPONSE_SIZE" default:"5000"`
	MaxBodyBytes          int64         `env:"MAX_BODY_LENGTH" default:"2097152"`
	FetchCount            int           `default:"3"`
	UserAgent             string        `env:"USER_AGENT" default:"ironmanus-orchestrator/1.0"`
	PhaseBudget           time.Duration `env:"KNOWLEDGE_PHASE_BUDGET_MS" default:"15000ms"`
}

// RateLimitConfig governs the per-host token bucket (C3).
type RateLimitConfig struct {
	RequestsPerWindow int           `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"5"`
	Window            time.Duration `env:"RATE_LIMIT_WINDOW_MS" default:"60000ms"`
}

// SSRFConfig governs the SSRF Guard (C2).
type SSRFConfig struct {
	Enabled      bool     `env:"ENABLE_SSRF_PROTECTION" default:"true"`
	AllowedHosts []string `env:"ALLOWED_HOSTS"`
}

// SessionConfig governs the Session Store (C6).
type SessionConfig struct {
	Backend      string        `env:"SESSION_BACKEND" default:"memory"` // memory|redis
	RedisURL     string        `env:"GOMIND_REDIS_URL,REDIS_URL"`
	IdleTimeout  time.Duration `default:"24h"`
	SweepInterval time.Duration `default:"1h"`
}

// GraphConfig governs the Knowledge Graph Store (C7).
type GraphConfig struct {
	BaseDir string `env:"GOMIND_SESSION_DIR" default:"./iron-manus-sessions"`
	InMemoryOnly bool `env:"GOMIND_GRAPH_INMEMORY" default:"false"`
}

// LoggingConfig controls the process's structured logger.
type LoggingConfig struct {
	Level  string `env:"GOMIND_LOG_LEVEL" default:"info"`
	Output string `env:"GOMIND_LOG_OUTPUT" default:"stderr"`
}

// TelemetryConfig governs the optional OpenTelemetry wiring.
type TelemetryConfig struct {
	Enabled      bool   `env:"GOMIND_TELEMETRY_ENABLED" default:"false"`
	OTLPEndpoint string `env:"GOMIND_TELEMETRY_OTLP_ENDPOINT"`
}

// Option applies a functional override, the highest-priority layer.
type Option func(*Config) error

func WithServiceName(name string) Option {
	return func(c *Config) error { c.ServiceName = name; return nil }
}

func WithAutoConnection(enabled bool) Option {
	return func(c *Config) error { c.Knowledge.AutoConnectionEnabled = enabled; return nil }
}

func WithSessionTTL(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("session ttl must be positive")
		}
		c.Session.IdleTimeout = d
		return nil
	}
}

func WithRateLimit(requests int, window time.Duration) Option {
	return func(c *Config) error {
		if requests <= 0 || window <= 0 {
			return fmt.Errorf("rate limit requests/window must be positive")
		}
		c.RateLimit.RequestsPerWindow = requests
		c.RateLimit.Window = window
		return nil
	}
}

func WithGraphDir(dir string) Option {
	return func(c *Config) error { c.Graph.BaseDir = dir; return nil }
}

// NewConfig builds a Config from defaults, then environment variables, then
// the supplied options, validating the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		ServiceName: "ironmanus-orchestrator",
		Knowledge: KnowledgeConfig{
			AutoConnectionEnabled: true,
			MaxConcurrency:        3,
			RequestTimeout:        5 * time.Second,
			ConfidenceThreshold:   0.3,
			MaxResponseChars:      5000,
			MaxBodyBytes:          2 << 20,
			FetchCount:            3,
			UserAgent:             "ironmanus-orchestrator/1.0",
			PhaseBudget:           15 * time.Second,
		},
		RateLimit: RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute},
		SSRF:      SSRFConfig{Enabled: true},
		Session:   SessionConfig{Backend: "memory", IdleTimeout: 24 * time.Hour, SweepInterval: time.Hour},
		Graph:     GraphConfig{BaseDir: "./iron-manus-sessions"},
		Logging:   LoggingConfig{Level: "info", Output: "stderr"},
		Telemetry: TelemetryConfig{},
	}

	applyEnv(cfg)

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := lookupAny("AUTO_CONNECTION_ENABLED"); ok {
		cfg.Knowledge.AutoConnectionEnabled = parseBool(v, cfg.Knowledge.AutoConnectionEnabled)
	}
	if v, ok := lookupAny("KNOWLEDGE_MAX_CONCURRENCY"); ok {
		cfg.Knowledge.MaxConcurrency = parseInt(v, cfg.Knowledge.MaxConcurrency)
	}
	if v, ok := lookupAny("KNOWLEDGE_TIMEOUT_MS"); ok {
		cfg.Knowledge.RequestTimeout = parseMillis(v, cfg.Knowledge.RequestTimeout)
	}
	if v, ok := lookupAny("KNOWLEDGE_CONFIDENCE_THRESHOLD"); ok {
		cfg.Knowledge.ConfidenceThreshold = parseFloat(v, cfg.Knowledge.ConfidenceThreshold)
	}
	if v, ok := lookupAny("KNOWLEDGE_MAX_RESPONSE_SIZE"); ok {
		cfg.Knowledge.MaxResponseChars = parseInt(v, cfg.Knowledge.MaxResponseChars)
	}
	if v, ok := lookupAny("MAX_BODY_LENGTH", "MAX_CONTENT_LENGTH"); ok {
		cfg.Knowledge.MaxBodyBytes = int64(parseInt(v, int(cfg.Knowledge.MaxBodyBytes)))
	}
	if v, ok := lookupAny("USER_AGENT"); ok {
		cfg.Knowledge.UserAgent = v
	}
	if v, ok := lookupAny("KNOWLEDGE_PHASE_BUDGET_MS"); ok {
		cfg.Knowledge.PhaseBudget = parseMillis(v, cfg.Knowledge.PhaseBudget)
	}
	if v, ok := lookupAny("RATE_LIMIT_REQUESTS_PER_MINUTE"); ok {
		cfg.RateLimit.RequestsPerWindow = parseInt(v, cfg.RateLimit.RequestsPerWindow)
	}
	if v, ok := lookupAny("RATE_LIMIT_WINDOW_MS"); ok {
		cfg.RateLimit.Window = parseMillis(v, cfg.RateLimit.Window)
	}
	if v, ok := lookupAny("ENABLE_SSRF_PROTECTION"); ok {
		cfg.SSRF.Enabled = parseBool(v, cfg.SSRF.Enabled)
	}
	if v, ok := lookupAny("ALLOWED_HOSTS"); ok && v != "" {
		cfg.SSRF.AllowedHosts = strings.Split(v, ",")
	}
	if v, ok := lookupAny("SESSION_BACKEND"); ok {
		cfg.Session.Backend = v
	}
	if v, ok := lookupAny("GOMIND_REDIS_URL", "REDIS_URL"); ok {
		cfg.Session.RedisURL = v
	}
	if v, ok := lookupAny("GOMIND_SESSION_DIR"); ok {
		cfg.Graph.BaseDir = v
	}
	if v, ok := lookupAny("GOMIND_GRAPH_INMEMORY"); ok {
		cfg.Graph.InMemoryOnly = parseBool(v, cfg.Graph.InMemoryOnly)
	}
	if v, ok := lookupAny("GOMIND_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookupAny("GOMIND_LOG_OUTPUT"); ok {
		cfg.Logging.Output = v
	}
	if v, ok := lookupAny("GOMIND_TELEMETRY_ENABLED"); ok {
		cfg.Telemetry.Enabled = parseBool(v, cfg.Telemetry.Enabled)
	}
	if v, ok := lookupAny("GOMIND_TELEMETRY_OTLP_ENDPOINT"); ok {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

// lookupAny checks each alias in order and returns the first one set to a
// non-empty value, so one field can be read from several variable names.
func lookupAny(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(v string, fallback float64) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseMillis(v string, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

// Validate checks that the assembled configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Knowledge.MaxConcurrency <= 0 {
		return fmt.Errorf("knowledge.max_concurrency must be positive")
	}
	if c.Knowledge.ConfidenceThreshold < 0 || c.Knowledge.ConfidenceThreshold > 1 {
		return fmt.Errorf("knowledge.confidence_threshold must be in [0,1]")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit requests/window must be positive")
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Session.RedisURL == "" {
		return fmt.Errorf("session.backend=redis requires a redis url")
	}
	return nil
}
