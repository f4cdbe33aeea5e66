// Package config loads the YAML configuration, layering file values over
// built-in defaults and environment overrides over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// APIConfig represents configuration for the model API.
type APIConfig struct {
	APIKey         string `yaml:"api_key,omitempty"`         // API key (ANTHROPIC_API_KEY overrides)
	Model          string `yaml:"model,omitempty"`           // Model identifier
	BaseURL        string `yaml:"base_url,omitempty"`        // Custom base URL (default: official API)
	MaxTokens      int    `yaml:"max_tokens,omitempty"`      // Output-token ceiling per turn
	ThinkingBudget int    `yaml:"thinking_budget,omitempty"` // Extended thinking budget; 0 disables
}

// MCPServerConfig represents configuration for the capability provider.
type MCPServerConfig struct {
	Command string   `yaml:"command,omitempty"` // STDIO transport command
	Args    []string `yaml:"args,omitempty"`    // Additional args for the command
	Env     []string `yaml:"env,omitempty"`     // Environment variables for the process
}

// DatabaseConfig represents configuration for conversation persistence.
type DatabaseConfig struct {
	Path           string `yaml:"path,omitempty"`            // SQLite file path; empty disables persistence
	MigrationsPath string `yaml:"migrations_path,omitempty"` // Directory holding migration files
}

// Config is the full application configuration.
type Config struct {
	API      APIConfig       `yaml:"api,omitempty"`
	MCP      MCPServerConfig `yaml:"mcp,omitempty"`
	Database DatabaseConfig  `yaml:"database,omitempty"`
	System   string          `yaml:"system_prompt,omitempty"` // System prompt for every turn
	LogFile  string          `yaml:"log_file,omitempty"`      // Log file path; empty logs to stdout
}

// DefaultConfigPath returns the default config file path.
// Can be overridden via AGENTSTREAM_CONFIG_PATH environment variable.
func DefaultConfigPath() string {
	if envPath := os.Getenv("AGENTSTREAM_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.agentstream/config.yaml"
	}
	return filepath.Join(homeDir, ".agentstream", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func defaults() Config {
	return Config{
		API: APIConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Database: DatabaseConfig{
			MigrationsPath: "migrations/sql",
		},
		LogFile: "agentstream.log",
	}
}

// Load reads configuration from path, merging file values over defaults and
// environment overrides over both. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.API.APIKey = apiKey
	}
	if model := os.Getenv("AGENTSTREAM_MODEL"); model != "" {
		cfg.API.Model = model
	}

	return &cfg, nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
