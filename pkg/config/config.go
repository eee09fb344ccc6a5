package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	App        AppConfig                 `json:"app"`
	Gateways   map[string]GatewayConfig  `json:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Memory     MemoryConfig              `json:"memory"`
	Engine     EngineConfig              `json:"engine"`
	Governance GovernanceConfig          `json:"governance"`
}

type AppConfig struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
}

type GatewayConfig struct {
	Token       string `json:"token"`
	Enabled     bool   `json:"enabled"`
	AllowedChat int64  `json:"allowed_chat,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// EngineConfig tunes the dispatcher, coordinator, gate, and scheduler.
// Zero values fall back to the engine defaults.
type EngineConfig struct {
	FailureBudget        int  `json:"failure_budget"`
	MaxGoalSteps         int  `json:"max_goal_steps"`
	ConfirmExpirySeconds int  `json:"confirm_expiry_seconds"`
	SchedulerPollSeconds int  `json:"scheduler_poll_seconds"`
	HeadlessBrowser      bool `json:"headless_browser"`
}

// GovernanceConfig points at an optional YAML file overriding the
// built-in risk tiers.
type GovernanceConfig struct {
	PolicyPath string `json:"policy_path,omitempty"`
}

func LoadConfig(path string) *Config {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	return &cfg
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns a gateway's config if enabled
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled {
		return gw, true
	}
	return GatewayConfig{}, false
}
