// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Surfaces SurfacesConfig `mapstructure:"surfaces" yaml:"surfaces"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Planner  PlannerConfig  `mapstructure:"planner" yaml:"planner"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LLMProvider defines the supported reasoning-service providers.
type LLMProvider string

const (
	ProviderGoogle LLMProvider = "google"
)

// LLMConfig defines the reasoning-service connection.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RequestsPerMinute throttles outbound calls; zero disables the limiter.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// SurfacesConfig locates the external controllable surfaces. Each value is a
// base URL; capability primitives resolve to <base>/<action>.
type SurfacesConfig struct {
	DocumentURL    string        `mapstructure:"document_url" yaml:"document_url"`
	PageURL        string        `mapstructure:"page_url" yaml:"page_url"`
	ScreenURL      string        `mapstructure:"screen_url" yaml:"screen_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ResolverConfig tunes the target-resolution fallback behavior. The scoring
// rule table itself is fixed, not configuration.
type ResolverConfig struct {
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
	ScrollRetries   int           `mapstructure:"scroll_retries" yaml:"scroll_retries"`
	ScrollIncrement int           `mapstructure:"scroll_increment" yaml:"scroll_increment"`
}

// PlannerConfig bounds the candidate context handed to the reasoning service.
type PlannerConfig struct {
	MaxEnumerated int     `mapstructure:"max_enumerated" yaml:"max_enumerated"`
	MaxCandidates int     `mapstructure:"max_candidates" yaml:"max_candidates"`
	AboveFoldY    float64 `mapstructure:"above_fold_y" yaml:"above_fold_y"`
}

// AgentConfig tunes the conversation loop controller.
type AgentConfig struct {
	// MaxIterations caps reasoning-service round trips per turn so a
	// misbehaving service cannot stall a turn forever.
	MaxIterations   int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	ToolConcurrency int           `mapstructure:"tool_concurrency" yaml:"tool_concurrency"`
	TurnTimeout     time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
}

// SessionConfig controls session eviction. A zero TTL keeps sessions for the
// process lifetime.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "conductor")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8720")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- LLM --
	v.SetDefault("llm.provider", "google")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_minute", 0)

	// -- Surfaces --
	v.SetDefault("surfaces.document_url", "http://localhost:8721/doc")
	v.SetDefault("surfaces.page_url", "http://localhost:8722/page")
	v.SetDefault("surfaces.screen_url", "http://localhost:8723/screen")
	v.SetDefault("surfaces.request_timeout", "10s")

	// -- Resolver --
	v.SetDefault("resolver.attempt_timeout", "800ms")
	v.SetDefault("resolver.scroll_retries", 3)
	v.SetDefault("resolver.scroll_increment", 600)

	// -- Planner --
	v.SetDefault("planner.max_enumerated", 220)
	v.SetDefault("planner.max_candidates", 120)
	v.SetDefault("planner.above_fold_y", 800)

	// -- Agent --
	v.SetDefault("agent.max_iterations", 12)
	v.SetDefault("agent.tool_concurrency", 1)
	v.SetDefault("agent.turn_timeout", "5m")

	// -- Session --
	v.SetDefault("session.ttl", "0s")
	v.SetDefault("session.janitor_interval", "1m")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "CONDUCTOR_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if c.Agent.ToolConcurrency <= 0 {
		return fmt.Errorf("agent.tool_concurrency must be a positive integer")
	}
	if c.Planner.MaxCandidates <= 0 || c.Planner.MaxEnumerated <= 0 {
		return fmt.Errorf("planner candidate bounds must be positive integers")
	}
	if c.Planner.MaxCandidates > c.Planner.MaxEnumerated {
		return fmt.Errorf("planner.max_candidates must not exceed planner.max_enumerated")
	}
	if c.Resolver.ScrollRetries < 0 {
		return fmt.Errorf("resolver.scroll_retries must not be negative")
	}
	if c.Session.TTL > 0 && c.Session.JanitorInterval <= 0 {
		return fmt.Errorf("session.janitor_interval must be positive when a TTL is set")
	}
	return nil
}
