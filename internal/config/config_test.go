package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
agents:
  - name: alice
  - name: bob
    model: deepseek-chat
total_resources: 1000
survival_cost_base: 10
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, cfg.AgentNames())
	assert.Equal(t, "deepseek-chat", cfg.Agents[1].Model)
	assert.Equal(t, 1000, cfg.TotalResources)
	assert.Equal(t, 10, cfg.SurvivalCostBase)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1500, cfg.BaseDecisionCost)
	assert.Equal(t, 3, cfg.ActionCosts.Propose)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total_resources: -5\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no agents", func(c *Config) { c.Agents = nil }},
		{"empty agent name", func(c *Config) { c.Agents[0].Name = "" }},
		{"duplicate agent", func(c *Config) { c.Agents[1].Name = c.Agents[0].Name }},
		{"negative resources", func(c *Config) { c.TotalResources = -1 }},
		{"negative survival cost", func(c *Config) { c.SurvivalCostBase = -1 }},
		{"decay above one", func(c *Config) { c.EfficiencyDecay = 1.5 }},
		{"zero min efficiency", func(c *Config) { c.MinEfficiency = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
