// Package config holds the simulation configuration. It is loaded once at
// startup and passed by value into the engine constructor; nothing in here is
// mutated after Load returns.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a complete simulation run.
type Config struct {
	// Agents participating in the simulation, in decision order.
	Agents []AgentConfig `yaml:"agents"`

	// Shelter economy.
	TotalResources   int `yaml:"total_resources"`
	InitialHealth    int `yaml:"initial_health"`
	MemoryLength     int `yaml:"memory_length"`
	SurvivalCostBase int `yaml:"survival_cost_base"`

	// Token accounting. The budget spans the whole simulation, not one day.
	TotalSimulationBudget int `yaml:"total_simulation_budget"`
	BaseDecisionCost      int `yaml:"base_decision_cost"`
	TokensPerActionPoint  int `yaml:"tokens_per_action_point"`

	// Action-point price of each strategic action.
	ActionCosts ActionCosts `yaml:"action_costs"`

	// System efficiency decay per elimination event.
	EfficiencyDecay float64 `yaml:"efficiency_decay"`
	MinEfficiency   float64 `yaml:"min_efficiency"`

	LLM LLMConfig `yaml:"llm"`
	API APIConfig `yaml:"api"`

	// Path of the SQLite audit log. Empty disables archiving.
	AuditDBPath string `yaml:"audit_db_path"`
}

// AgentConfig names one agent and optionally overrides the model it runs on.
type AgentConfig struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model,omitempty"`
}

// ActionCosts maps each action type to its action-point price.
type ActionCosts struct {
	Propose        int `yaml:"propose"`
	Vote           int `yaml:"vote"`
	PrivateMessage int `yaml:"private_message"`
	CallMeeting    int `yaml:"call_meeting"`
	DoNothing      int `yaml:"do_nothing"`
}

// LLMConfig points the decision provider at an OpenAI-compatible endpoint.
// The API key comes from the environment, never from the file.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxPerMin   int     `yaml:"max_calls_per_minute"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration the original shelter shipped with.
func Default() Config {
	return Config{
		Agents: []AgentConfig{
			{Name: "chatgpt"},
			{Name: "deepseek"},
			{Name: "doubao"},
		},
		TotalResources:        5000,
		InitialHealth:         100,
		MemoryLength:          5,
		SurvivalCostBase:      20,
		TotalSimulationBudget: 200000,
		BaseDecisionCost:      1500,
		TokensPerActionPoint:  100,
		ActionCosts: ActionCosts{
			Propose:        3,
			Vote:           1,
			PrivateMessage: 1,
			CallMeeting:    5,
			DoNothing:      0,
		},
		EfficiencyDecay: 0.05,
		MinEfficiency:   0.5,
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxPerMin:   20,
		},
		API: APIConfig{Port: 8080},
	}
}

// Load reads a YAML config file, layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}
	if c.TotalResources <= 0 {
		return fmt.Errorf("total_resources must be positive")
	}
	if c.SurvivalCostBase < 0 {
		return fmt.Errorf("survival_cost_base must not be negative")
	}
	if c.EfficiencyDecay < 0 || c.EfficiencyDecay > 1 {
		return fmt.Errorf("efficiency_decay must be in [0,1]")
	}
	if c.MinEfficiency <= 0 || c.MinEfficiency > 1 {
		return fmt.Errorf("min_efficiency must be in (0,1]")
	}
	return nil
}

// AgentNames returns the configured agent names in order.
func (c Config) AgentNames() []string {
	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.Name
	}
	return names
}
