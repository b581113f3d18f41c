package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rahul/mishri-pev/internal/pev"
)

type Config struct {
	App        AppConfig                 `json:"app" yaml:"app"`
	Gateways   map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory     MemoryConfig              `json:"memory" yaml:"memory"`
	Engine     EngineConfig              `json:"engine" yaml:"engine"`
	Governance GovernanceConfig          `json:"governance" yaml:"governance"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	Prompts   string `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Headless  *bool  `json:"headless,omitempty" yaml:"headless,omitempty"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

// EngineConfig bounds the plan-execute-verify loop. MaxReplans is nil until
// set; an explicit 0 disables replanning.
type EngineConfig struct {
	MaxSteps              int  `json:"max_steps" yaml:"max_steps"`
	MaxReplans            *int `json:"max_replans" yaml:"max_replans"`
	ConfirmTimeoutSeconds int  `json:"confirm_timeout_seconds" yaml:"confirm_timeout_seconds"`
}

// Replans returns the configured replan budget.
func (e EngineConfig) Replans() int {
	if e.MaxReplans == nil {
		return pev.DefaultMaxReplans
	}
	return *e.MaxReplans
}

type GovernanceConfig struct {
	DenyTools     []string `json:"deny_tools" yaml:"deny_tools"`
	ConfirmTools  []string `json:"confirm_tools" yaml:"confirm_tools"`
	DenyArguments []string `json:"deny_arguments" yaml:"deny_arguments"`
}

// LoadConfig reads a JSON or YAML config file, expands ${VAR} references in
// secrets and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) expandEnv() {
	for name, g := range c.Gateways {
		g.Token = os.ExpandEnv(g.Token)
		c.Gateways[name] = g
	}
	for name, p := range c.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
		c.Providers[name] = p
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "mishri"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "./workspace"
	}
	if c.App.Prompts == "" {
		c.App.Prompts = "./prompts"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "mishri.db"
	}
	if c.Engine.MaxSteps <= 0 {
		c.Engine.MaxSteps = pev.DefaultMaxSteps
	}
	if c.Engine.ConfirmTimeoutSeconds <= 0 {
		c.Engine.ConfirmTimeoutSeconds = 120
	}
}

// Headless reports whether the browser tool should run without a window.
func (c *Config) Headless() bool {
	return c.App.Headless == nil || *c.App.Headless
}

// GetDefaultProvider returns the first enabled provider, by name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}
