package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, ":8720", cfg.Server.ListenAddr)
	assert.Equal(t, ProviderGoogle, cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.APITimeout)
	assert.Equal(t, 3, cfg.Resolver.ScrollRetries)
	assert.Equal(t, 120, cfg.Planner.MaxCandidates)
	assert.Equal(t, 220, cfg.Planner.MaxEnumerated)
	assert.Equal(t, 12, cfg.Agent.MaxIterations)
	assert.Equal(t, time.Duration(0), cfg.Session.TTL)

	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("agent.max_iterations", 5)
	v.Set("resolver.attempt_timeout", "250ms")
	v.Set("session.ttl", "10m")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolver.AttemptTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero max iterations",
			mutate:  func(c *Config) { c.Agent.MaxIterations = 0 },
			wantErr: "agent.max_iterations",
		},
		{
			name:    "zero tool concurrency",
			mutate:  func(c *Config) { c.Agent.ToolConcurrency = 0 },
			wantErr: "agent.tool_concurrency",
		},
		{
			name:    "candidates above enumeration cap",
			mutate:  func(c *Config) { c.Planner.MaxCandidates = 500 },
			wantErr: "planner.max_candidates",
		},
		{
			name:    "negative scroll retries",
			mutate:  func(c *Config) { c.Resolver.ScrollRetries = -1 },
			wantErr: "resolver.scroll_retries",
		},
		{
			name: "ttl without janitor interval",
			mutate: func(c *Config) {
				c.Session.TTL = time.Minute
				c.Session.JanitorInterval = 0
			},
			wantErr: "session.janitor_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
