package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// AgentConfig holds all configuration for the field agent CLI
type AgentConfig struct {
	Agent  AgentNodeConfig `toml:"agent"`
	Server RegistryConfig  `toml:"server"`
	Cache  CacheConfig     `toml:"cache"`
}

// AgentNodeConfig holds agent identity and settings
type AgentNodeConfig struct {
	Name     string `toml:"name"`
	DataDir  string `toml:"data_dir"`
	DeviceID string `toml:"device_id"`
	APIKey   string `toml:"api_key"`
}

// RegistryConfig holds verifier API connection info
type RegistryConfig struct {
	URL string `toml:"url"`
}

// CacheConfig holds offline cache settings
type CacheConfig struct {
	Path      string `toml:"path"`
	MaxAgeMin int    `toml:"max_age_min"`
}

// LoadAgent loads agent configuration from TOML file
func LoadAgent(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AgentConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// Save saves agent configuration to TOML file
func (c *AgentConfig) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureDirs creates necessary directories
func (c *AgentConfig) EnsureDirs() error {
	if err := os.MkdirAll(c.Agent.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Agent.DataDir, err)
	}
	return nil
}

func (c *AgentConfig) setDefaults() {
	if c.Agent.DataDir == "" {
		c.Agent.DataDir = "data"
	}
	if c.Server.URL == "" {
		c.Server.URL = "http://localhost:8080"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.Agent.DataDir, "verifications.db")
	}
	if c.Cache.MaxAgeMin == 0 {
		c.Cache.MaxAgeMin = 60
	}
}

// DefaultAgentConfig returns a default agent configuration
func DefaultAgentConfig() *AgentConfig {
	cfg := &AgentConfig{}
	cfg.setDefaults()
	return cfg
}
